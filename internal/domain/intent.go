package domain

// FolderInfo is the (artist, album, year) triple recovered from a folder name.
type FolderInfo struct {
	Artist string `json:"artist"`
	Album  string `json:"album"`
	Year   string `json:"year,omitempty"`
}

// Complete reports whether both artist and album are known.
func (f FolderInfo) Complete() bool {
	return f.Artist != "" && f.Album != ""
}

// SearchIntent is a normalized search request derived from free text.
type SearchIntent struct {
	Query  string       `json:"query"`
	Engine SearchEngine `json:"engine,omitempty"`
}
