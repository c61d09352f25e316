package ytutil

import (
	"fmt"
	"net/url"
	"strings"
)

type IDType string

const (
	InvalidID  = IDType("invalid")
	PlaylistID = IDType("playlist")
	VideoID    = IDType("video")
)

type ID struct {
	Type  IDType
	Value string
}

// ExtractAndIdentifyIDs pulls video and playlist IDs out of pasted text:
// bare IDs, watch URLs, youtu.be URLs, playlist URLs, separated by
// whitespace.
func ExtractAndIdentifyIDs(text string, ignoreInvalid bool) ([]ID, error) {
	var ids []ID

	for _, urlOrID := range strings.Fields(text) {
		if idType, id, err := ExtractAndIdentifyID(urlOrID); err == nil {
			ids = append(ids, ID{idType, id})
		} else if !ignoreInvalid {
			return nil, fmt.Errorf("ytutil.ExtractAndIdentifyIDs: could not identify %q: %w", urlOrID, err)
		}
	}

	return ids, nil
}

func ExtractAndIdentifyID(urlOrID string) (IDType, string, error) {
	if playlistID, err := ExtractPlaylistID(urlOrID); err == nil {
		return PlaylistID, playlistID, nil
	}

	if videoID, err := ExtractVideoID(urlOrID); err == nil {
		return VideoID, videoID, nil
	}

	return InvalidID, "", fmt.Errorf("ytutil.ExtractAndIdentifyID: could not extract a known ID type")
}

func ExtractPlaylistID(urlOrID string) (string, error) {
	u, err := url.Parse(urlOrID)
	if err == nil && u.Scheme != "" && u.Host == "www.youtube.com" && u.Path == "/playlist" {
		return ExtractPlaylistID(u.Query().Get("list"))
	}

	playlistID := strings.TrimSpace(urlOrID)
	if len(playlistID) == 0 {
		return "", fmt.Errorf("ytutil.ExtractPlaylistID: empty input")
	}

	if strings.HasPrefix(playlistID, "PL") || strings.HasPrefix(playlistID, "UU") || strings.HasPrefix(playlistID, "FL") {
		return playlistID, nil
	}

	if len(playlistID) == 34 || len(playlistID) == 41 {
		return playlistID, nil
	}

	return "", fmt.Errorf("ytutil.ExtractPlaylistID: invalid url or id; could not find a known pattern")
}

func ExtractVideoID(urlOrID string) (string, error) {
	if len(urlOrID) == 11 {
		return urlOrID, nil
	}

	parsed, err := url.Parse(urlOrID)
	if err != nil {
		return "", err
	}

	if parsed.Host == "www.youtube.com" && parsed.Path == "/watch" {
		if id := parsed.Query().Get("v"); id != "" {
			if len(id) != 11 {
				return "", fmt.Errorf("invalid video id for v parameter in youtube.com url; length should be 11")
			}

			return id, nil
		}

		return "", fmt.Errorf("no v query parameter in youtube.com url")
	}

	if parsed.Host == "youtu.be" {
		if id := strings.TrimPrefix(parsed.Path, "/"); id != "" {
			if len(id) != 11 {
				return "", fmt.Errorf("invalid video id for youtu.be url; length should be 11")
			}

			return id, nil
		}

		return "", fmt.Errorf("no path content found in youtu.be url")
	}

	return "", fmt.Errorf("invalid url or id; could not find a known pattern")
}
