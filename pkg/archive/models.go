package archive

// Image is one metadata record describing a single archived image, as
// returned by the listing and detail endpoints. Records are immutable after
// decoding; the meta block is opaque to the rest of the tool.
type Image struct {
	ID      string                 `json:"_id"`
	Name    string                 `json:"name"`
	Created string                 `json:"created,omitempty"`
	Updated string                 `json:"updated,omitempty"`
	Dataset Dataset                `json:"dataset,omitempty"`
	Meta    map[string]interface{} `json:"meta,omitempty"`
}

// Filename returns the destination file name for the image binary,
// record identifier plus the archive's image extension.
func (img Image) Filename() string {
	if img.Name != "" {
		return img.Name + ".jpg"
	}
	return img.ID + ".jpg"
}

// Dataset describes a named collection of images in the archive
type Dataset struct {
	ID          string `json:"_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Count       int    `json:"count,omitempty"`
}

// authResponse is the body returned by the authentication endpoint
type authResponse struct {
	AuthToken struct {
		Token string `json:"token"`
	} `json:"auth_token"`
	Message string `json:"message,omitempty"`
}
