package domain

// TitleHit is one entry of the title index.
type TitleHit struct {
	Title              string `json:"title"`
	TitleWithExtension string `json:"titleWithExtension,omitempty"`
	Filepath           string `json:"filepath,omitempty"`
}

// ContentHit is one chunk returned by the content index.
type ContentHit struct {
	Title    string `json:"title"`
	Content  string `json:"content"`
	Filepath string `json:"filepath,omitempty"`
	ChunkID  string `json:"chunkingId,omitempty"`
}

// Citation points at a document referenced by a tool output.
type Citation struct {
	Title    string `json:"title"`
	Filepath string `json:"filepath,omitempty"`
	Page     string `json:"page,omitempty"`
	Marker   string `json:"marker"`
}
