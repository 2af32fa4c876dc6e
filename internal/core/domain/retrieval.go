package domain

import "time"

// Chunk is one measure-bounded span of a source document. Offsets index the
// original text so the chunk content can always be traced back to it.
type Chunk struct {
	Text   string `json:"text"`
	Start  int    `json:"start"`
	End    int    `json:"end"`
	Tokens int    `json:"tokens"`
	Source string `json:"source,omitempty"`
}

// MetadataRecord is the payload stored next to each indexed vector.
type MetadataRecord struct {
	Text   string `json:"text"`
	Source string `json:"source"`
}

// Neighbor is one nearest-neighbor hit. Distance is squared Euclidean,
// Ordinal is the position of the entry inside the index.
type Neighbor struct {
	Distance float64        `json:"distance"`
	Ordinal  int            `json:"ordinal"`
	Record   MetadataRecord `json:"record"`
}

// SourceChunk is a retrieved chunk attached to a query response. Score is a
// normalized [0,1] similarity; ChunkIndex is the 0-based retrieval rank.
type SourceChunk struct {
	Document   string  `json:"document"`
	Chunk      string  `json:"chunk"`
	Score      float64 `json:"score"`
	ChunkIndex int     `json:"chunk_index"`
}

type QueryResponse struct {
	Query               string        `json:"query"`
	Answer              string        `json:"answer"`
	Sources             []SourceChunk `json:"sources"`
	Confidence          float64       `json:"confidence"`
	NumChunksRetrieved  int           `json:"num_chunks_retrieved"`
	IsHallucinationRisk bool          `json:"is_hallucination_risk"`
	Timestamp           time.Time     `json:"timestamp"`
}

type BulkQueryResponse struct {
	TotalQueries  int             `json:"total_queries"`
	Successful    int             `json:"successful"`
	Failed        int             `json:"failed"`
	AvgConfidence float64         `json:"avg_confidence"`
	Results       []QueryResponse `json:"results"`
}
