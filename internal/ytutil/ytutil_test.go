package ytutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var videoIDTests = []struct {
	input string
	id    string
	err   bool
}{
	{"dQw4w9WgXcQ", "dQw4w9WgXcQ", false},
	{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ", false},
	{"https://www.youtube.com/watch?v=dQw4w9WgXcQ&t=42s", "dQw4w9WgXcQ", false},
	{"https://youtu.be/dQw4w9WgXcQ", "dQw4w9WgXcQ", false},
	{"https://www.youtube.com/watch", "", true},
	{"https://youtu.be/", "", true},
	{"https://www.youtube.com/watch?v=tooshort", "", true},
	{"definitely-not-a-video", "", true},
}

func TestExtractVideoID(t *testing.T) {
	for _, tc := range videoIDTests {
		t.Run(tc.input, func(t *testing.T) {
			a := assert.New(t)

			id, err := ExtractVideoID(tc.input)
			if tc.err {
				a.Error(err)
			} else {
				a.NoError(err)
				a.Equal(tc.id, id)
			}
		})
	}
}

var playlistIDTests = []struct {
	input string
	id    string
	err   bool
}{
	{"PLFgquLnL59alCl_2TQvOiD5Vgm1hCaGSI", "PLFgquLnL59alCl_2TQvOiD5Vgm1hCaGSI", false},
	{"https://www.youtube.com/playlist?list=PLFgquLnL59alCl_2TQvOiD5Vgm1hCaGSI", "PLFgquLnL59alCl_2TQvOiD5Vgm1hCaGSI", false},
	{"", "", true},
	{"xyz", "", true},
}

func TestExtractPlaylistID(t *testing.T) {
	for _, tc := range playlistIDTests {
		t.Run(tc.input, func(t *testing.T) {
			a := assert.New(t)

			id, err := ExtractPlaylistID(tc.input)
			if tc.err {
				a.Error(err)
			} else {
				a.NoError(err)
				a.Equal(tc.id, id)
			}
		})
	}
}

func TestExtractAndIdentifyIDs(t *testing.T) {
	a := assert.New(t)

	ids, err := ExtractAndIdentifyIDs("dQw4w9WgXcQ https://www.youtube.com/playlist?list=PLFgquLnL59alCl_2TQvOiD5Vgm1hCaGSI", false)
	a.NoError(err)
	a.Equal([]ID{
		{VideoID, "dQw4w9WgXcQ"},
		{PlaylistID, "PLFgquLnL59alCl_2TQvOiD5Vgm1hCaGSI"},
	}, ids)

	_, err = ExtractAndIdentifyIDs("dQw4w9WgXcQ garbage", false)
	a.Error(err)

	ids, err = ExtractAndIdentifyIDs("dQw4w9WgXcQ garbage", true)
	a.NoError(err)
	a.Len(ids, 1)
}
