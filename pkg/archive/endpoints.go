package archive

import (
	"fmt"
	"net/url"
	"strconv"
)

// DefaultBaseURL is the public archive API root
const DefaultBaseURL = "https://isic-archive.com/api/v1"

// ListImagesURL builds the paginated image listing endpoint.
// The listing is offset based: page N starts at offset = N * limit.
func ListImagesURL(baseURL string, limit, offset int, datasetID string) string {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))
	params.Set("offset", strconv.Itoa(offset))
	params.Set("detail", "true")
	if datasetID != "" {
		params.Set("datasetId", datasetID)
	}
	return fmt.Sprintf("%s/image?%s", baseURL, params.Encode())
}

// ImageURL builds the single-image detail endpoint
func ImageURL(baseURL, imageID string) string {
	return fmt.Sprintf("%s/image/%s", baseURL, url.PathEscape(imageID))
}

// ImageDownloadURL builds the binary download endpoint for an image.
// This is the resource reference attached to each metadata record.
func ImageDownloadURL(baseURL, imageID string) string {
	return fmt.Sprintf("%s/image/%s/download", baseURL, url.PathEscape(imageID))
}

// ListDatasetsURL builds the dataset listing endpoint
func ListDatasetsURL(baseURL string, limit, offset int) string {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))
	params.Set("offset", strconv.Itoa(offset))
	return fmt.Sprintf("%s/dataset?%s", baseURL, params.Encode())
}

// AuthenticationURL builds the basic-auth login endpoint
func AuthenticationURL(baseURL string) string {
	return fmt.Sprintf("%s/user/authentication", baseURL)
}
