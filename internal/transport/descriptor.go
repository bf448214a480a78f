package transport

import "encoding/json"

// MediaDescriptor is the hosting service's description of an uploaded video.
type MediaDescriptor struct {
	PublicID         string `json:"public_id"`
	SecureURL        string `json:"secure_url"`
	OriginalFilename string `json:"original_filename"`
	Format           string `json:"format"`
	Bytes            int64  `json:"bytes"`
	ThumbnailURL     string `json:"thumbnail_url"`
	ResourceType     string `json:"resource_type"`
	CreatedAt        string `json:"created_at"`
}

// Valid reports whether the descriptor identifies a hosted asset.
func (d MediaDescriptor) Valid() bool {
	return d.PublicID != "" && d.SecureURL != ""
}

func decodeDescriptor(payload []byte) (MediaDescriptor, bool) {
	var descriptor MediaDescriptor
	if err := json.Unmarshal(payload, &descriptor); err != nil {
		return MediaDescriptor{}, false
	}
	if !descriptor.Valid() {
		return MediaDescriptor{}, false
	}
	return descriptor, true
}
