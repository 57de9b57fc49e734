package directions

// Google Directions API response structures

type googleResponse struct {
	Status       string        `json:"status"`
	ErrorMessage string        `json:"error_message"`
	Routes       []googleRoute `json:"routes"`
}

type googleRoute struct {
	Legs []googleLeg `json:"legs"`
}

type googleLatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type googleValue struct {
	Text  string  `json:"text"`
	Value float64 `json:"value"`
}

type googleLeg struct {
	Distance      googleValue  `json:"distance"`
	Duration      googleValue  `json:"duration"`
	StartLocation googleLatLng `json:"start_location"`
	EndLocation   googleLatLng `json:"end_location"`
	Steps         []googleStep `json:"steps"`
}

type googleStep struct {
	HTMLInstructions string       `json:"html_instructions"`
	Distance         googleValue  `json:"distance"`
	Duration         googleValue  `json:"duration"`
	StartLocation    googleLatLng `json:"start_location"`
	EndLocation      googleLatLng `json:"end_location"`
	Polyline         struct {
		Points string `json:"points"`
	} `json:"polyline"`
}
