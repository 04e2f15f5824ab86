package transport

type TodoCreateRequest struct {
	Text string `json:"text"`
	Done bool   `json:"done"`
}

// TodoUpdateRequest leaves omitted fields unchanged.
type TodoUpdateRequest struct {
	Text *string `json:"text"`
	Done *bool   `json:"done"`
}
