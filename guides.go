package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
	"github.com/zekroTJA/timedmap"
)

// GuideType names a device setup guide.
type GuideType string

const (
	GuideEmby            GuideType = "emby"
	GuideFlexIptv        GuideType = "flex-iptv"
	GuideFirestick       GuideType = "firestick"
	GuideKodi            GuideType = "kodi"
	GuideGseIptvSmarters GuideType = "gse-iptvsmarters"
	GuideTivimate        GuideType = "tivimate"
)

var GuideTypes = []GuideType{GuideEmby, GuideFlexIptv, GuideFirestick, GuideKodi, GuideGseIptvSmarters, GuideTivimate}

var guideNames = map[GuideType]string{
	GuideEmby:            "Emby",
	GuideFlexIptv:        "Flex IPTV",
	GuideFirestick:       "Firestick",
	GuideKodi:            "Kodi",
	GuideGseIptvSmarters: "GSE IPTV Smarters",
	GuideTivimate:        "TiviMate",
}

func (g GuideType) Name() string {
	if name, ok := guideNames[g]; ok {
		return name
	}
	return string(g)
}

var ErrUnknownGuide = errors.New("unknown guide")

// Guide is a device setup guide ready to be shown to the user.
type Guide struct {
	Type  GuideType
	URL   string
	Title string
	Steps []string
	Links []string
}

// GuideFetcher downloads guide pages from the guides site. Parsed guides are
// kept for a while since the pages rarely change.
type GuideFetcher struct {
	baseURL string
	client  *http.Client
	cache   *timedmap.TimedMap
	ttl     time.Duration
}

func NewGuideFetcher(baseURL string, client *http.Client, ttl time.Duration) *GuideFetcher {
	return &GuideFetcher{
		baseURL: baseURL,
		client:  client,
		cache:   timedmap.New(time.Minute),
		ttl:     ttl,
	}
}

// ParseGuideType accepts a guide type with or without the "-guide" suffix used
// by the site's paths.
func ParseGuideType(value string) (GuideType, error) {
	guide := GuideType(strings.TrimSuffix(strings.ToLower(strings.TrimSpace(value)), "-guide"))
	if !lo.Contains(GuideTypes, guide) {
		return "", fmt.Errorf("%w: %q", ErrUnknownGuide, value)
	}
	return guide, nil
}

func (f *GuideFetcher) URL(guide GuideType) string {
	return fmt.Sprintf("%s/%s-guide", f.baseURL, guide)
}

// Fetch returns the guide of the given type.
func (f *GuideFetcher) Fetch(ctx context.Context, guide GuideType) (*Guide, error) {
	if cached, ok := f.cache.GetValue(guide).(*Guide); ok {
		return cached, nil
	}

	link := f.URL(guide)
	req, err := BuildRequest(ctx, http.MethodGet, "", link, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/html")

	res, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s guide: %w", guide, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching %s guide: %s answered %s", guide, link, res.Status)
	}

	doc, err := goquery.NewDocumentFromReader(res.Body)
	if err != nil {
		return nil, fmt.Errorf("parsing %s guide: %w", guide, err)
	}

	parsed := ParseGuide(doc)
	parsed.Type = guide
	parsed.URL = link
	if parsed.Title == "" {
		parsed.Title = guide.Name()
	}
	if len(parsed.Steps) == 0 {
		log.WithField("guide", guide).Warn("Guide page has no steps")
	}

	f.cache.Set(guide, &parsed, f.ttl)
	return &parsed, nil
}

func (f *GuideFetcher) Stop() {
	f.cache.StopCleaner()
}
