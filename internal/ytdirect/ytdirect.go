package ytdirect

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/Jeffail/gabs/v2"
	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"fknsrs.biz/p/ytnotes/internal/ctxhttpclient"
)

func getDocument(ctx context.Context, url string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("ytdirect.getDocument: %w", err)
	}

	res, err := ctxhttpclient.GetHTTPClient(ctx).Do(req)
	if err != nil {
		return nil, fmt.Errorf("ytdirect.getDocument: %w", err)
	}

	doc, err := goquery.NewDocumentFromResponse(res)
	if err != nil {
		return nil, fmt.Errorf("ytdirect.getDocument: %w", err)
	}

	return doc, nil
}

func findInitialData(doc *goquery.Document, prefix string) *string {
	for _, node := range doc.Find("script").Nodes {
		if node.FirstChild == nil || node.FirstChild.Type != html.TextNode {
			continue
		}

		jsContent := node.FirstChild.Data

		if !strings.HasPrefix(jsContent, prefix) {
			continue
		}

		jsContent = strings.TrimPrefix(jsContent, prefix)
		jsContent = strings.TrimSuffix(jsContent, ";")

		return &jsContent
	}

	return nil
}

type Playlist struct {
	ID       string
	Title    string
	VideoIDs []string
}

// GetPlaylist scrapes the video listing of a public playlist, used for
// bulk-attaching a whole external playlist.
func GetPlaylist(ctx context.Context, id string) (*Playlist, error) {
	doc, err := getDocument(ctx, "https://www.youtube.com/playlist?list="+id)
	if err != nil {
		return nil, fmt.Errorf("ytdirect.GetPlaylist: %w", err)
	}

	var p Playlist

	if jsContent := findInitialData(doc, "var ytInitialData ="); jsContent != nil {
		var (
			idPaths = []string{
				"header.playlistHeaderRenderer.playButton.buttonRenderer.navigationEndpoint.watchEndpoint.playlistId",
				"header.playlistHeaderRenderer.playlistHeaderBanner.heroPlaylistThumbnailRenderer.onTap.watchEndpoint.playlistId",
				"header.playlistHeaderRenderer.playlistId",
				"header.playlistHeaderRenderer.shufflePlayButton.buttonRenderer.navigationEndpoint.watchEndpoint.playlistId",
				"sidebar.playlistSidebarRenderer.items.0.playlistSidebarPrimaryInfoRenderer.navigationEndpoint.watchEndpoint.playlistId",
			}
			titlePaths = []string{
				"header.playlistHeaderRenderer.title.simpleText",
				"metadata.playlistMetadataRenderer.albumName",
				"metadata.playlistMetadataRenderer.title",
				"microformat.microformatDataRenderer.title",
			}
			entryListPath = "contents.twoColumnBrowseResultsRenderer.tabs.0.tabRenderer.content.sectionListRenderer.contents.0.itemSectionRenderer.contents.0.playlistVideoListRenderer.contents"
			videoIDPath   = "playlistVideoRenderer.videoId"
		)

		j, err := gabs.ParseJSON([]byte(*jsContent))
		if err != nil {
			return nil, fmt.Errorf("ytdirect.GetPlaylist: %w", err)
		}

		for _, path := range idPaths {
			if j.ExistsP(path) {
				p.ID = j.Path(path).Data().(string)
				break
			}
		}

		for _, path := range titlePaths {
			if j.ExistsP(path) {
				p.Title = j.Path(path).Data().(string)
				break
			}
		}

		for _, element := range j.Path(entryListPath).Children() {
			if element.ExistsP(videoIDPath) {
				if videoID, ok := element.Path(videoIDPath).Data().(string); ok {
					p.VideoIDs = append(p.VideoIDs, videoID)
				}
			}
		}
	}

	if p.ID == "" {
		return nil, fmt.Errorf("ytdirect.GetPlaylist: could not find suitable data in page")
	}

	return &p, nil
}

type Video struct {
	ID            string
	ChannelID     string
	ChannelTitle  string
	Title         string
	LengthSeconds int
	Thumbnails    []string
}

// GetVideo scrapes the metadata the attachment core needs for a single
// video: title, channel identity, duration, thumbnail set.
func GetVideo(ctx context.Context, id string) (*Video, error) {
	doc, err := getDocument(ctx, "https://www.youtube.com/watch?v="+id)
	if err != nil {
		return nil, fmt.Errorf("ytdirect.GetVideo: %w", err)
	}

	var v Video

	if jsContent := findInitialData(doc, "var ytInitialPlayerResponse ="); jsContent != nil {
		const (
			videoIDPath            = "videoDetails.videoId"
			videoChannelIDPath     = "videoDetails.channelId"
			videoChannelTitlePath  = "microformat.playerMicroformatRenderer.ownerChannelName"
			videoTitlePath         = "microformat.playerMicroformatRenderer.title.simpleText"
			videoLengthSecondsPath = "videoDetails.lengthSeconds"
			videoThumbnailListPath = "videoDetails.thumbnail.thumbnails"
		)

		j, err := gabs.ParseJSON([]byte(*jsContent))
		if err != nil {
			return nil, fmt.Errorf("ytdirect.GetVideo: %w", err)
		}

		if j.ExistsP(videoIDPath) {
			v.ID = j.Path(videoIDPath).Data().(string)
		}
		if j.ExistsP(videoChannelIDPath) {
			v.ChannelID = j.Path(videoChannelIDPath).Data().(string)
		}
		if j.ExistsP(videoChannelTitlePath) {
			v.ChannelTitle = j.Path(videoChannelTitlePath).Data().(string)
		}
		if j.ExistsP(videoTitlePath) {
			v.Title = j.Path(videoTitlePath).Data().(string)
		}
		if j.ExistsP(videoLengthSecondsPath) {
			if s, ok := j.Path(videoLengthSecondsPath).Data().(string); ok {
				if n, err := strconv.Atoi(s); err == nil {
					v.LengthSeconds = n
				}
			}
		}
		for _, thumbnail := range j.Path(videoThumbnailListPath).Children() {
			if thumbnail.ExistsP("url") {
				if u, ok := thumbnail.Path("url").Data().(string); ok {
					v.Thumbnails = append(v.Thumbnails, u)
				}
			}
		}
	}

	if v.ID == "" {
		return nil, fmt.Errorf("ytdirect.GetVideo: could not find suitable data in page")
	}

	return &v, nil
}
