package schemas

// Rect is a viewport-relative bounding box.
type Rect struct {
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Width   float64 `json:"width"`
	Height  float64 `json:"height"`
	CenterX float64 `json:"centerX"`
	CenterY float64 `json:"centerY"`
}

// Marker is one numbered overlay produced by a marking pass.
type Marker struct {
	ID          int    `json:"id"`
	Tag         string `json:"tag"`
	Type        string `json:"type"`
	Name        string `json:"name"`
	Placeholder string `json:"placeholder"`
	AriaLabel   string `json:"ariaLabel"`
	Text        string `json:"text"`
	Rect        Rect   `json:"rect"`
}
