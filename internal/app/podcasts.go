package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"learnlab-client/internal/domain"
	"learnlab-client/internal/validate"
)

// PodcastAPI is the slice of the API the podcast store needs.
type PodcastAPI interface {
	ListPodcasts(ctx context.Context, fileID string) ([]domain.Podcast, error)
	GetPodcast(ctx context.Context, podcastID string) (domain.Podcast, error)
	UpdatePodcastProgress(ctx context.Context, podcastID string, position, speed float64) (domain.PodcastProgress, error)
}

type playback struct {
	Position float64 `json:"position" validate:"gte=0"`
	Speed    float64 `json:"speed" validate:"gt=0,lte=4"`
}

// Podcasts holds the podcasts of a file and the playback progress of the open one.
type Podcasts struct {
	api PodcastAPI
	log zerolog.Logger

	mu       sync.Mutex
	podcasts []domain.Podcast
	current  *domain.Podcast
	progress map[string]domain.PodcastProgress
	lastErr  string
}

func NewPodcasts(api PodcastAPI, log zerolog.Logger) *Podcasts {
	return &Podcasts{
		api:      api,
		log:      log.With().Str("component", "podcasts").Logger(),
		progress: map[string]domain.PodcastProgress{},
	}
}

func (p *Podcasts) Podcasts() []domain.Podcast {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.Podcast(nil), p.podcasts...)
}

func (p *Podcasts) Current() (domain.Podcast, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return domain.Podcast{}, false
	}
	return *p.current, true
}

// Progress returns the last progress the server acknowledged for a podcast.
func (p *Podcasts) Progress(podcastID string) (domain.PodcastProgress, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	prog, ok := p.progress[podcastID]
	return prog, ok
}

func (p *Podcasts) Err() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr
}

func (p *Podcasts) FetchPodcasts(ctx context.Context, fileID string) error {
	podcasts, err := p.api.ListPodcasts(ctx, fileID)
	if err != nil {
		return p.fail("Failed to fetch podcasts", fmt.Errorf("fetch podcasts: %w", err))
	}
	p.mu.Lock()
	p.podcasts = podcasts
	p.lastErr = ""
	p.mu.Unlock()
	return nil
}

// Open loads a podcast and makes it current.
func (p *Podcasts) Open(ctx context.Context, podcastID string) (domain.Podcast, error) {
	podcast, err := p.api.GetPodcast(ctx, podcastID)
	if err != nil {
		return domain.Podcast{}, p.fail("Failed to load podcast", fmt.Errorf("open podcast %s: %w", podcastID, err))
	}
	p.mu.Lock()
	p.current = &podcast
	p.lastErr = ""
	p.mu.Unlock()
	return podcast, nil
}

// UpdateProgress records the playback position in seconds and the speed.
func (p *Podcasts) UpdateProgress(ctx context.Context, podcastID string, position, speed float64) (domain.PodcastProgress, error) {
	if err := validate.Struct(playback{Position: position, Speed: speed}); err != nil {
		return domain.PodcastProgress{}, err
	}
	prog, err := p.api.UpdatePodcastProgress(ctx, podcastID, position, speed)
	if err != nil {
		return domain.PodcastProgress{}, p.fail("Failed to save progress", fmt.Errorf("update progress of %s: %w", podcastID, err))
	}
	p.mu.Lock()
	p.progress[podcastID] = prog
	if p.current != nil && p.current.ID == podcastID {
		p.current.CurrentProgress = prog.CurrentPosition
		p.current.CurrentSpeed = prog.PlaybackSpeed
	}
	p.mu.Unlock()
	p.log.Debug().Str("podcast_id", podcastID).Float64("position", position).Float64("speed", speed).Msg("progress saved")
	return prog, nil
}

func (p *Podcasts) fail(msg string, err error) error {
	p.mu.Lock()
	p.lastErr = msg
	p.mu.Unlock()
	p.log.Warn().Err(err).Msg(msg)
	return err
}
