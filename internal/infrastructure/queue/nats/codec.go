package nats

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/permit-assistant/internal/core/domain"
)

const (
	headerDocumentID  = "Permit-Document-Id"
	headerPublishedAt = "Permit-Published-At"
)

func encodeMessage(subject string, doc *domain.PermitDocument, now time.Time) (*nats.Msg, error) {
	if doc == nil {
		return nil, domain.InvalidInput("encode permit message", "document is nil")
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal permit document: %w", err)
	}
	msg := nats.NewMsg(subject)
	msg.Data = body
	msg.Header.Set(headerDocumentID, doc.ID)
	msg.Header.Set(headerPublishedAt, now.UTC().Format(time.RFC3339Nano))
	return msg, nil
}

func decodeMessage(msg *nats.Msg) (*domain.PermitDocument, time.Time, error) {
	var doc domain.PermitDocument
	if err := json.Unmarshal(msg.Data, &doc); err != nil {
		return nil, time.Time{}, domain.WrapError(domain.ErrInvalidInput, "decode permit message", err)
	}
	if doc.ID == "" && msg.Header != nil {
		doc.ID = msg.Header.Get(headerDocumentID)
	}

	var publishedAt time.Time
	if msg.Header != nil {
		if raw := msg.Header.Get(headerPublishedAt); raw != "" {
			parsed, err := time.Parse(time.RFC3339Nano, raw)
			if err == nil {
				publishedAt = parsed
			}
		}
	}
	return &doc, publishedAt, nil
}
