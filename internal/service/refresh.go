// Path: internal/service/refresh.go
package service

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"chartwatch/internal/config"
	"chartwatch/internal/domain"
	"chartwatch/internal/scrape"
)

// runCycle executes one full refresh across all configured chart scopes.
// Scope-level fetch failures are isolated; storage failures abort the cycle.
func (s *Service) runCycle(ctx context.Context, cycleID string) error {
	started := time.Now().UTC()
	cycle := &domain.RefreshCycle{
		ID:          cycleID,
		State:       domain.CycleRunning,
		StartedAt:   started,
		ScopeErrors: make(map[string]string),
	}
	if err := s.status.PutCycle(ctx, *cycle); err != nil {
		log.Printf("Refresh %s: could not record cycle start: %v", cycleID, err)
	}
	s.broker.Publish(EventRefreshStarted, *cycle)
	log.Printf("Refresh %s: starting across %d chart scopes.", cycleID, len(s.charts))

	var hardErr error
	for _, chart := range s.charts {
		if err := s.refreshScope(ctx, chart, cycle); err != nil {
			hardErr = err
			break
		}
	}

	finished := time.Now().UTC()
	cycle.FinishedAt = &finished
	switch {
	case hardErr != nil:
		cycle.State = domain.CycleFailed
	case len(cycle.ScopeErrors) > 0:
		cycle.State = domain.CyclePartial
	default:
		cycle.State = domain.CycleCompleted
	}

	s.metrics.CyclesTotal.WithLabelValues(string(cycle.State)).Inc()
	s.metrics.CycleDuration.Observe(finished.Sub(started).Seconds())
	if cycle.State == domain.CycleCompleted {
		s.metrics.LastSuccess.Set(float64(finished.Unix()))
	}

	if err := s.status.PutCycle(ctx, *cycle); err != nil {
		log.Printf("Refresh %s: could not record cycle outcome: %v", cycleID, err)
	}

	if hardErr != nil {
		s.broker.Publish(EventRefreshFailed, *cycle)
		log.Printf("Refresh %s: aborted after %s: %v", cycleID, finished.Sub(started), hardErr)
		return hardErr
	}

	s.broker.Publish(EventRefreshCompleted, *cycle)
	log.Printf("Refresh %s: finished in %s (state=%s, scraped=%d, rejected=%d, enriched=%d).",
		cycleID, finished.Sub(started), cycle.State, cycle.Scraped, cycle.Rejected, cycle.Enriched)
	return nil
}

// refreshScope runs the track and artist pipelines for one chart scope.
// The two pipelines are independent; each may fail its fetch without
// touching the other.
func (s *Service) refreshScope(ctx context.Context, chart config.ChartConfig, cycle *domain.RefreshCycle) error {
	scope := domain.Scope(chart.Scope)

	rawTracks, tracksOK := s.scrapeTracks(ctx, chart, cycle)
	if tracksOK {
		bounded := topTracks(rawTracks, s.cfg.TrackLimit)
		if err := s.reconcileTracks(ctx, scope, bounded, cycle); err != nil {
			return fmt.Errorf("scope %s: reconcile tracks: %w", scope, err)
		}
	}

	var rawArtists []domain.RawArtist
	artistsOK := false
	switch {
	case chart.DeriveArtists:
		if tracksOK {
			rawArtists = aggregateArtists(topTracks(rawTracks, s.cfg.TrackLimit))
			artistsOK = true
		} else {
			cycle.ScopeErrors[chart.Scope+"/artists"] = "track chart unavailable for artist aggregation"
		}
	case chart.ArtistsPath != "":
		rawArtists, artistsOK = s.scrapeArtists(ctx, chart, cycle)
	}

	if artistsOK {
		bounded := topArtists(rawArtists, s.cfg.ArtistLimit)
		if err := s.reconcileArtists(ctx, scope, bounded, cycle); err != nil {
			return fmt.Errorf("scope %s: reconcile artists: %w", scope, err)
		}
	}
	return nil
}

func (s *Service) scrapeTracks(ctx context.Context, chart config.ChartConfig, cycle *domain.RefreshCycle) ([]domain.RawTrack, bool) {
	markup, err := s.fetcher.FetchPage(ctx, s.baseURL+chart.TracksPath)
	if err != nil {
		s.recordScopeError(cycle, chart.Scope, "tracks", err)
		return nil, false
	}
	rows, err := scrape.ExtractRows(markup)
	if err != nil {
		s.recordScopeError(cycle, chart.Scope, "tracks", err)
		return nil, false
	}

	records, rejected := scrape.ParseTrackRows(rows, s.cfg.TrackFloor)
	cycle.Scraped += len(records)
	cycle.Rejected += rejected
	s.metrics.RowsScraped.WithLabelValues(chart.Scope, "tracks").Add(float64(len(records)))
	s.metrics.RowsRejected.WithLabelValues(chart.Scope, "tracks").Add(float64(rejected))
	log.Printf("Refresh %s/tracks: parsed %d rows (%d rejected).", chart.Scope, len(records), rejected)
	return records, true
}

func (s *Service) scrapeArtists(ctx context.Context, chart config.ChartConfig, cycle *domain.RefreshCycle) ([]domain.RawArtist, bool) {
	markup, err := s.fetcher.FetchPage(ctx, s.baseURL+chart.ArtistsPath)
	if err != nil {
		s.recordScopeError(cycle, chart.Scope, "artists", err)
		return nil, false
	}
	rows, err := scrape.ExtractRows(markup)
	if err != nil {
		s.recordScopeError(cycle, chart.Scope, "artists", err)
		return nil, false
	}

	records, rejected := scrape.ParseArtistRows(rows, s.cfg.ArtistFloor)
	cycle.Scraped += len(records)
	cycle.Rejected += rejected
	s.metrics.RowsScraped.WithLabelValues(chart.Scope, "artists").Add(float64(len(records)))
	s.metrics.RowsRejected.WithLabelValues(chart.Scope, "artists").Add(float64(rejected))
	log.Printf("Refresh %s/artists: parsed %d rows (%d rejected).", chart.Scope, len(records), rejected)
	return records, true
}

func (s *Service) recordScopeError(cycle *domain.RefreshCycle, scope, kind string, err error) {
	cycle.ScopeErrors[scope+"/"+kind] = err.Error()
	log.Printf("Refresh %s/%s: failed, sibling scopes continue: %v", scope, kind, err)
}

// reconcileArtists folds cleaned artist records into snapshot history and the
// materialized current state for one scope.
func (s *Service) reconcileArtists(ctx context.Context, scope domain.Scope, records []domain.RawArtist, cycle *domain.RefreshCycle) error {
	if err := s.cleanupArtists(ctx, scope); err != nil {
		return err
	}

	observedAt := time.Now().UTC()
	snapshots := make([]domain.ArtistSnapshot, len(records))
	for i, record := range records {
		snapshots[i] = domain.ArtistSnapshot{
			ArtistName:       record.Name,
			Scope:            scope,
			Rank:             record.Rank,
			MonthlyListeners: record.MonthlyListeners,
			ListenersDelta:   record.ListenersDelta,
			CreatedAt:        observedAt,
		}
	}
	if err := s.artists.InsertSnapshots(ctx, snapshots); err != nil {
		return err
	}

	for _, record := range records {
		key := domain.ArtistKey{Name: record.Name, Scope: scope}

		// Strictly before this cycle's observation, so the snapshots just
		// inserted never count as their own history.
		previous, err := s.artists.FindPreviousSnapshot(ctx, key, observedAt)
		if err != nil {
			return err
		}

		var previousRank, rankDelta *int
		listenersDelta := record.ListenersDelta
		if previous != nil {
			rank := previous.Rank
			previousRank = &rank
			// Negative delta = moved up the chart.
			delta := record.Rank - previous.Rank
			rankDelta = &delta
			if listenersDelta == nil {
				metricDelta := record.MonthlyListeners - previous.MonthlyListeners
				listenersDelta = &metricDelta
			}
		}

		existing, err := s.artists.FindCurrent(ctx, key)
		if err != nil {
			return err
		}

		current := domain.ArtistCurrent{
			ArtistName:       record.Name,
			Scope:            scope,
			Rank:             record.Rank,
			PreviousRank:     previousRank,
			RankDelta:        rankDelta,
			MonthlyListeners: record.MonthlyListeners,
			ListenersDelta:   listenersDelta,
			LastUpdated:      time.Now().UTC(),
		}
		if existing != nil {
			current.SpotifyID = existing.SpotifyID
			current.ImageURL = existing.ImageURL
			current.Genres = existing.Genres
			current.SpotifyURL = existing.SpotifyURL
		}

		if current.SpotifyID == "" {
			if err := s.pacer.Wait(ctx); err != nil {
				return err
			}
			if meta := s.resolver.ResolveArtist(ctx, record.Name); meta != nil {
				current.SpotifyID = meta.SpotifyID
				current.ImageURL = meta.ImageURL
				current.Genres = meta.Genres
				current.SpotifyURL = meta.URL
				cycle.Enriched++
				s.metrics.Enrichments.WithLabelValues("artist", "hit").Inc()
			} else {
				s.metrics.Enrichments.WithLabelValues("artist", "miss").Inc()
			}
		}

		if err := s.artists.UpsertCurrent(ctx, current); err != nil {
			return err
		}
	}
	return nil
}

// reconcileTracks is the track-side twin of reconcileArtists.
func (s *Service) reconcileTracks(ctx context.Context, scope domain.Scope, records []domain.RawTrack, cycle *domain.RefreshCycle) error {
	if err := s.cleanupTracks(ctx, scope); err != nil {
		return err
	}

	observedAt := time.Now().UTC()
	snapshots := make([]domain.TrackSnapshot, len(records))
	for i, record := range records {
		snapshots[i] = domain.TrackSnapshot{
			TrackName:    record.Track,
			ArtistName:   record.Artist,
			Scope:        scope,
			Rank:         record.Rank,
			DailyStreams: record.DailyStreams,
			TotalStreams: record.TotalStreams,
			CreatedAt:    observedAt,
		}
	}
	if err := s.tracks.InsertSnapshots(ctx, snapshots); err != nil {
		return err
	}

	for _, record := range records {
		key := domain.TrackKey{Track: record.Track, Artist: record.Artist, Scope: scope}

		previous, err := s.tracks.FindPreviousSnapshot(ctx, key, observedAt)
		if err != nil {
			return err
		}

		var previousRank, rankDelta *int
		if previous != nil {
			rank := previous.Rank
			previousRank = &rank
			delta := record.Rank - previous.Rank
			rankDelta = &delta
		}

		existing, err := s.tracks.FindCurrent(ctx, key)
		if err != nil {
			return err
		}

		current := domain.TrackCurrent{
			TrackName:    record.Track,
			ArtistName:   record.Artist,
			Scope:        scope,
			Rank:         record.Rank,
			PreviousRank: previousRank,
			RankDelta:    rankDelta,
			DailyStreams: record.DailyStreams,
			TotalStreams: record.TotalStreams,
			LastUpdated:  time.Now().UTC(),
		}
		if existing != nil {
			current.SpotifyID = existing.SpotifyID
			current.ImageURL = existing.ImageURL
			current.PreviewURL = existing.PreviewURL
			current.SpotifyURL = existing.SpotifyURL
		}

		if current.SpotifyID == "" {
			if err := s.pacer.Wait(ctx); err != nil {
				return err
			}
			if meta := s.resolver.ResolveTrack(ctx, record.Track, record.Artist); meta != nil {
				current.SpotifyID = meta.SpotifyID
				current.ImageURL = meta.ImageURL
				current.PreviewURL = meta.PreviewURL
				current.SpotifyURL = meta.URL
				cycle.Enriched++
				s.metrics.Enrichments.WithLabelValues("track", "hit").Inc()
			} else {
				s.metrics.Enrichments.WithLabelValues("track", "miss").Inc()
			}
		}

		if err := s.tracks.UpsertCurrent(ctx, current); err != nil {
			return err
		}
	}
	return nil
}

// cleanupArtists purges current rows that fail today's validity rules,
// repairing state left behind by looser earlier scrapes. History goes with
// the row: a series that was never real data has no audit value.
func (s *Service) cleanupArtists(ctx context.Context, scope domain.Scope) error {
	all, err := s.artists.AllCurrent(ctx, scope)
	if err != nil {
		return err
	}
	purged := 0
	for i := range all {
		current := &all[i]
		if current.MonthlyListeners >= s.cfg.ArtistFloor && scrape.ValidName(current.ArtistName) {
			continue
		}
		key := current.Key()
		if err := s.artists.DeleteCurrent(ctx, key); err != nil {
			return err
		}
		if err := s.artists.DeleteSnapshots(ctx, key); err != nil {
			return err
		}
		purged++
	}
	if purged > 0 {
		log.Printf("Cleanup: purged %d invalid artist entries for %s.", purged, scope)
	}
	return nil
}

// cleanupTracks purges current rows whose streams fall below the
// plausibility floor or whose name is symbol-only garbage.
func (s *Service) cleanupTracks(ctx context.Context, scope domain.Scope) error {
	all, err := s.tracks.AllCurrent(ctx, scope)
	if err != nil {
		return err
	}
	purged := 0
	for i := range all {
		current := &all[i]
		if current.DailyStreams >= s.cfg.TrackFloor && scrape.ValidName(current.TrackName) {
			continue
		}
		key := current.Key()
		if err := s.tracks.DeleteCurrent(ctx, key); err != nil {
			return err
		}
		if err := s.tracks.DeleteSnapshots(ctx, key); err != nil {
			return err
		}
		purged++
	}
	if purged > 0 {
		log.Printf("Cleanup: purged %d invalid track entries for %s.", purged, scope)
	}
	return nil
}

// aggregateArtists derives an artist ranking for scopes without a native
// listeners chart: daily streams are summed per artist over the track chart
// as a listeners proxy, then artists are re-ranked by that total.
func aggregateArtists(tracks []domain.RawTrack) []domain.RawArtist {
	type aggregate struct {
		streams  int64
		bestRank int
	}
	byArtist := make(map[string]*aggregate)
	var order []string // insertion order keeps ties deterministic

	for _, track := range tracks {
		agg, ok := byArtist[track.Artist]
		if !ok {
			byArtist[track.Artist] = &aggregate{streams: track.DailyStreams, bestRank: track.Rank}
			order = append(order, track.Artist)
			continue
		}
		agg.streams += track.DailyStreams
		if track.Rank < agg.bestRank {
			agg.bestRank = track.Rank
		}
	}

	artists := make([]domain.RawArtist, 0, len(order))
	for _, name := range order {
		agg := byArtist[name]
		artists = append(artists, domain.RawArtist{
			Name:             name,
			Rank:             agg.bestRank,
			MonthlyListeners: agg.streams,
		})
	}
	sort.SliceStable(artists, func(i, j int) bool {
		if artists[i].MonthlyListeners != artists[j].MonthlyListeners {
			return artists[i].MonthlyListeners > artists[j].MonthlyListeners
		}
		return artists[i].Rank < artists[j].Rank
	})
	for i := range artists {
		artists[i].Rank = i + 1
	}
	return artists
}

func topArtists(records []domain.RawArtist, limit int) []domain.RawArtist {
	sorted := make([]domain.RawArtist, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Rank < sorted[j].Rank })
	if limit > 0 && len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return sorted
}

func topTracks(records []domain.RawTrack, limit int) []domain.RawTrack {
	sorted := make([]domain.RawTrack, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Rank < sorted[j].Rank })
	if limit > 0 && len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return sorted
}
