package domain

type Action struct {
	Label string `json:"label"`
	Data  string `json:"data"`
}

type ReleaseSummary struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Artist   string   `json:"artist"`
	Years    string   `json:"years,omitempty"`
	Types    string   `json:"types,omitempty"`
	Tracks   string   `json:"tracks,omitempty"`
	Tags     string   `json:"tags,omitempty"`
	Label    string   `json:"label,omitempty"`
	CoverURL string   `json:"coverUrl,omitempty"`
	Actions  []Action `json:"actions,omitempty"`
}

type Continuation struct {
	NextPage  int `json:"nextPage"`
	Remaining int `json:"remaining"`
}

type Page struct {
	Engine       SearchEngine     `json:"engine"`
	Query        string           `json:"query"`
	Index        int              `json:"index"`
	Total        int              `json:"total"`
	Header       string           `json:"header"`
	Items        []ReleaseSummary `json:"items"`
	More         *Continuation    `json:"more,omitempty"`
	CanDigDeeper bool             `json:"canDigDeeper"`
}

// ResponseItem is one display-agnostic message for the chat transport.
type ResponseItem struct {
	Text     string   `json:"text"`
	ImageURL string   `json:"imageUrl,omitempty"`
	Actions  []Action `json:"actions,omitempty"`
}
