package nats

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/permit-assistant/internal/core/domain"
	"github.com/kirillkom/permit-assistant/internal/infrastructure/resilience"
)

const workerGroup = "workers"

// Queue carries permit documents between the importer and the ingestion
// worker over a NATS subject.
type Queue struct {
	conn        *nats.Conn
	subject     string
	executor    *resilience.Executor
	lagObserver func(time.Duration)
	now         func() time.Time
}

type Options struct {
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
	// LagObserver receives the publish-to-receive delay of every message.
	LagObserver func(time.Duration)
}

func New(url, subject string) (*Queue, error) {
	return NewWithOptions(url, subject, Options{})
}

func NewWithOptions(url, subject string, options Options) (*Queue, error) {
	if options.ConnectTimeout <= 0 {
		options.ConnectTimeout = 2 * time.Second
	}
	if options.ReconnectWait <= 0 {
		options.ReconnectWait = 2 * time.Second
	}
	if options.MaxReconnects <= 0 {
		options.MaxReconnects = 60
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}

	conn, err := nats.Connect(
		url,
		nats.Name("permit-assistant"),
		nats.Timeout(options.ConnectTimeout),
		nats.ReconnectWait(options.ReconnectWait),
		nats.MaxReconnects(options.MaxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, domain.WrapError(domain.ErrTemporary, "connect nats", err)
	}
	return &Queue{
		conn:        conn,
		subject:     subject,
		executor:    options.ResilienceExecutor,
		lagObserver: options.LagObserver,
		now:         time.Now,
	}, nil
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

func (q *Queue) PublishPermitDocument(ctx context.Context, doc *domain.PermitDocument) error {
	msg, err := encodeMessage(q.subject, doc, q.now())
	if err != nil {
		return err
	}
	call := func(context.Context) error {
		if err := q.conn.PublishMsg(msg); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}

	if q.executor != nil {
		err = q.executor.Execute(ctx, "nats.publish", call, classifyNATSError)
	} else {
		err = call(ctx)
	}
	return publishError(err)
}

// SubscribePermitDocuments blocks until ctx is done, handing each decoded
// document to handler. Undecodable messages are logged and dropped.
func (q *Queue) SubscribePermitDocuments(ctx context.Context, handler func(context.Context, *domain.PermitDocument) error) error {
	sub, err := q.conn.QueueSubscribe(q.subject, workerGroup, func(msg *nats.Msg) {
		if ctx.Err() != nil {
			return
		}
		doc, publishedAt, err := decodeMessage(msg)
		if err != nil {
			slog.Error("nats_message_rejected", "subject", msg.Subject, "error", err)
			return
		}
		if q.lagObserver != nil && !publishedAt.IsZero() {
			q.lagObserver(q.now().Sub(publishedAt))
		}

		if err := handler(ctx, doc); err != nil {
			slog.Error("permit_document_handler_failed", "document_id", doc.ID, "title", doc.DocumentTitle, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}
	if err := q.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := q.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}
