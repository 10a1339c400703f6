package service

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/psds-microservice/live-pk-service/internal/model"
)

// DefaultFallback is the built-in demo pool shown when nothing is live.
func DefaultFallback() []model.LiveSession {
	return []model.LiveSession{
		{
			ID:                  "demo-1",
			OwnerID:             "demo-owner-1",
			DisplayName:         "Night Beats",
			AvatarURL:           "https://cdn.example.com/demo/avatar-1.png",
			Title:               "Lo-fi till sunrise",
			CoverURL:            "https://cdn.example.com/demo/cover-1.jpg",
			ChannelName:         "demo-channel-1",
			OwnerMediaSubjectID: 900001,
		},
		{
			ID:                  "demo-2",
			OwnerID:             "demo-owner-2",
			DisplayName:         "Kitchen Live",
			AvatarURL:           "https://cdn.example.com/demo/avatar-2.png",
			Title:               "Cooking with friends",
			CoverURL:            "https://cdn.example.com/demo/cover-2.jpg",
			ChannelName:         "demo-channel-2",
			OwnerMediaSubjectID: 900002,
		},
		{
			ID:                  "demo-3",
			OwnerID:             "demo-owner-3",
			DisplayName:         "Arena Talk",
			AvatarURL:           "https://cdn.example.com/demo/avatar-3.png",
			Title:               "Weekend match recap",
			CoverURL:            "https://cdn.example.com/demo/cover-3.jpg",
			ChannelName:         "demo-channel-3",
			OwnerMediaSubjectID: 900003,
		},
	}
}

// LoadFallback reads a JSON array of sessions from path.
// A relative path is also tried against the parent directory (when started from bin/).
func LoadFallback(path string) ([]model.LiveSession, error) {
	candidates := []string{path}
	if !filepath.IsAbs(path) {
		cwd, _ := os.Getwd()
		candidates = []string{
			filepath.Join(cwd, path),
			filepath.Join(cwd, "..", path),
		}
	}
	var body []byte
	var err error
	for _, p := range candidates {
		body, err = os.ReadFile(p)
		if err == nil {
			break
		}
	}
	if err != nil {
		return nil, fmt.Errorf("fallback %s: %w", path, err)
	}
	var out []model.LiveSession
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("fallback %s: %w", path, err)
	}
	for i, s := range out {
		if s.ID == "" {
			return nil, fmt.Errorf("fallback %s: entry %d has no id", path, i)
		}
	}
	return out, nil
}
