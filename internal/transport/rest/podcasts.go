package rest

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"learnlab-client/internal/domain"
)

func (c *Client) ListPodcasts(ctx context.Context, fileID string) ([]domain.Podcast, error) {
	var podcasts []domain.Podcast
	req := request{method: http.MethodGet, path: "/api/podcasts"}
	if fileID != "" {
		req.query = url.Values{"file_id": {fileID}}
	}
	err := c.do(ctx, req, &podcasts)
	return podcasts, err
}

func (c *Client) GetPodcast(ctx context.Context, podcastID string) (domain.Podcast, error) {
	var podcast domain.Podcast
	err := c.do(ctx, request{method: http.MethodGet, path: "/api/podcasts/" + pathID(podcastID)}, &podcast)
	return podcast, err
}

// UpdatePodcastProgress records the playback position (seconds) and speed.
func (c *Client) UpdatePodcastProgress(ctx context.Context, podcastID string, position, speed float64) (domain.PodcastProgress, error) {
	var progress domain.PodcastProgress
	err := c.do(ctx, request{
		method: http.MethodPatch,
		path:   "/api/podcasts/" + pathID(podcastID) + "/progress",
		query: url.Values{
			"position": {strconv.FormatFloat(position, 'f', -1, 64)},
			"speed":    {strconv.FormatFloat(speed, 'f', -1, 64)},
		},
	}, &progress)
	return progress, err
}
