package assistant

// Response is the subset of a model response the normalizer reads. Every
// level is optional; a missing level means "no sources".
type Response struct {
	Text       string
	Candidates []Candidate
}

type Candidate struct {
	GroundingMetadata *GroundingMetadata
}

type GroundingMetadata struct {
	GroundingChunks []GroundingChunk
}

type GroundingChunk struct {
	Web *WebReference
}

type WebReference struct {
	URI   string
	Title *string
}

// Normalize extracts the answer text and, for search-grounded requests, the
// web citations of the first candidate in the order the API returned them.
// Chunks without a web reference are dropped; repeated URIs are kept.
func Normalize(resp *Response, searchGrounded bool) Result {
	result := Result{Sources: []GroundingSource{}}
	if resp == nil {
		return result
	}
	result.Text = resp.Text

	if !searchGrounded || len(resp.Candidates) == 0 {
		return result
	}
	meta := resp.Candidates[0].GroundingMetadata
	if meta == nil {
		return result
	}

	for _, chunk := range meta.GroundingChunks {
		if chunk.Web == nil {
			continue
		}
		result.Sources = append(result.Sources, GroundingSource{
			URI:   chunk.Web.URI,
			Title: chunk.Web.Title,
		})
	}
	return result
}
