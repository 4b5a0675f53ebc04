// Path: internal/delivery/rest/handlers_test.go
package rest_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"chartwatch/internal/delivery/rest"
	"chartwatch/internal/domain"
	"chartwatch/internal/events"
	"chartwatch/internal/service"
	. "github.com/smartystreets/goconvey/convey"
)

// stubService is a canned statsService for handler tests.
type stubService struct {
	artists     []domain.ArtistCurrent
	tracks      []domain.TrackCurrent
	detail      *domain.ArtistDetail
	detailErr   error
	cycle       *domain.RefreshCycle
	lastUpdated *time.Time

	triggerErr error
	cycleID    string
	triggered  int
	lastWait   bool
}

func (s *stubService) TopArtists(context.Context, int, domain.Scope) ([]domain.ArtistCurrent, error) {
	return s.artists, nil
}

func (s *stubService) TopTracks(context.Context, int, domain.Scope) ([]domain.TrackCurrent, error) {
	return s.tracks, nil
}

func (s *stubService) ArtistHistory(context.Context, string, domain.Scope, int) ([]domain.ArtistHistoryPoint, error) {
	return nil, nil
}

func (s *stubService) ArtistDetail(context.Context, string, domain.Scope) (*domain.ArtistDetail, error) {
	if s.detailErr != nil {
		return nil, s.detailErr
	}
	return s.detail, nil
}

func (s *stubService) TrackHistory(context.Context, string, string, domain.Scope, int) ([]domain.TrackHistoryPoint, error) {
	return nil, nil
}

func (s *stubService) LastRefresh(context.Context) (*time.Time, error) {
	return s.lastUpdated, nil
}

func (s *stubService) LatestCycle(context.Context) (*domain.RefreshCycle, error) {
	return s.cycle, nil
}

func (s *stubService) TriggerRefresh(_ context.Context, wait bool) (string, error) {
	s.triggered++
	s.lastWait = wait
	if s.triggerErr != nil {
		return "", s.triggerErr
	}
	return s.cycleID, nil
}

func newMux(stub *stubService, secret string, production bool) *http.ServeMux {
	mux := http.NewServeMux()
	rest.NewHandlers(stub, events.NewBroker(), secret, production).RegisterRoutes(mux)
	return mux
}

func do(mux *http.ServeMux, method, target string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for key, values := range header {
		req.Header[key] = values
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestRefreshEndpointAuth(t *testing.T) {
	Convey("Given a production deployment with a configured secret", t, func() {
		stub := &stubService{cycleID: "cycle-1"}
		mux := newMux(stub, "s3cret", true)

		Convey("When no secret is presented", func() {
			rec := do(mux, http.MethodPost, "/api/refresh", nil)

			Convey("Then the trigger is rejected without running anything", func() {
				So(rec.Code, ShouldEqual, http.StatusUnauthorized)
				So(stub.triggered, ShouldEqual, 0)
			})
		})

		Convey("When the wrong secret is presented", func() {
			rec := do(mux, http.MethodPost, "/api/refresh?secret=wrong", nil)

			So(rec.Code, ShouldEqual, http.StatusUnauthorized)
			So(stub.triggered, ShouldEqual, 0)
		})

		Convey("When the secret arrives as a query parameter", func() {
			rec := do(mux, http.MethodPost, "/api/refresh?secret=s3cret", nil)

			Convey("Then the trigger is accepted asynchronously", func() {
				So(rec.Code, ShouldEqual, http.StatusAccepted)
				So(stub.triggered, ShouldEqual, 1)
				So(stub.lastWait, ShouldBeFalse)

				var body map[string]string
				So(json.Unmarshal(rec.Body.Bytes(), &body), ShouldBeNil)
				So(body["cycleId"], ShouldEqual, "cycle-1")
			})
		})

		Convey("When the secret arrives as a bearer token", func() {
			header := http.Header{"Authorization": []string{"Bearer s3cret"}}
			rec := do(mux, http.MethodPost, "/api/refresh", header)

			So(rec.Code, ShouldEqual, http.StatusAccepted)
		})

		Convey("When the secret arrives in the admin header", func() {
			header := http.Header{"X-Admin-Secret": []string{"s3cret"}}
			rec := do(mux, http.MethodPost, "/api/refresh", header)

			So(rec.Code, ShouldEqual, http.StatusAccepted)
		})

		Convey("When sync mode is requested", func() {
			rec := do(mux, http.MethodPost, "/api/refresh?secret=s3cret&mode=sync", nil)

			Convey("Then the handler waits for the cycle", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(stub.lastWait, ShouldBeTrue)
			})
		})

		Convey("When a cycle is already in flight", func() {
			stub.triggerErr = service.ErrRefreshInFlight
			rec := do(mux, http.MethodPost, "/api/refresh?secret=s3cret", nil)

			So(rec.Code, ShouldEqual, http.StatusConflict)
		})

		Convey("When an unsupported method is used", func() {
			rec := do(mux, http.MethodDelete, "/api/refresh?secret=s3cret", nil)

			So(rec.Code, ShouldEqual, http.StatusMethodNotAllowed)
		})
	})

	Convey("Given a production deployment with no secret configured", t, func() {
		stub := &stubService{cycleID: "cycle-1"}
		mux := newMux(stub, "", true)

		Convey("When a trigger arrives", func() {
			rec := do(mux, http.MethodPost, "/api/refresh", nil)

			Convey("Then it is a server configuration error, not an open door", func() {
				So(rec.Code, ShouldEqual, http.StatusInternalServerError)
				So(stub.triggered, ShouldEqual, 0)
			})
		})
	})

	Convey("Given a non-production deployment", t, func() {
		stub := &stubService{cycleID: "cycle-1"}
		mux := newMux(stub, "s3cret", false)

		Convey("When a trigger arrives with no secret", func() {
			rec := do(mux, http.MethodGet, "/api/refresh", nil)

			Convey("Then the gate is relaxed", func() {
				So(rec.Code, ShouldEqual, http.StatusAccepted)
				So(stub.triggered, ShouldEqual, 1)
			})
		})
	})
}

func TestReadEndpoints(t *testing.T) {
	Convey("Given materialized leaderboard state", t, func() {
		delta := func(v int64) *int64 { return &v }
		stub := &stubService{
			artists: []domain.ArtistCurrent{
				{ArtistName: "Steady", Rank: 1, ListenersDelta: delta(100)},
				{ArtistName: "Faller", Rank: 2, ListenersDelta: delta(-900)},
				{ArtistName: "Fresh", Rank: 3},
			},
			tracks: []domain.TrackCurrent{{TrackName: "Song", ArtistName: "Steady", Rank: 1}},
		}
		mux := newMux(stub, "", false)

		Convey("When the artist leaderboard is requested", func() {
			rec := do(mux, http.MethodGet, "/api/artists", nil)

			Convey("Then it returns the artists envelope", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				var body struct {
					Artists []domain.ArtistCurrent `json:"artists"`
				}
				So(json.Unmarshal(rec.Body.Bytes(), &body), ShouldBeNil)
				So(body.Artists, ShouldHaveLength, 3)
			})
		})

		Convey("When the biggest movers ordering is requested", func() {
			rec := do(mux, http.MethodGet, "/api/artists?sortBy=dailyChange", nil)

			Convey("Then rows sort by absolute change and rows without one drop out", func() {
				var body struct {
					Artists []domain.ArtistCurrent `json:"artists"`
				}
				So(json.Unmarshal(rec.Body.Bytes(), &body), ShouldBeNil)
				So(body.Artists, ShouldHaveLength, 2)
				So(body.Artists[0].ArtistName, ShouldEqual, "Faller")
				So(body.Artists[1].ArtistName, ShouldEqual, "Steady")
			})
		})

		Convey("When the track leaderboard is requested", func() {
			rec := do(mux, http.MethodGet, "/api/tracks", nil)

			So(rec.Code, ShouldEqual, http.StatusOK)
		})

		Convey("When artist detail is requested", func() {
			stub.detail = &domain.ArtistDetail{
				Artist:   stub.artists[0],
				TopSongs: []domain.ArtistTopSong{{TrackName: "Song", TotalStreams: 123752.8}},
				TopVideos: []domain.ArtistTopVideo{
					{VideoTitle: "Song (Official Video)", TotalViews: 900000000},
				},
			}
			rec := do(mux, http.MethodGet, "/api/artists/detail?name=Steady", nil)

			Convey("Then the detail envelope carries songs and videos", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				var body domain.ArtistDetail
				So(json.Unmarshal(rec.Body.Bytes(), &body), ShouldBeNil)
				So(body.Artist.ArtistName, ShouldEqual, "Steady")
				So(body.TopSongs, ShouldHaveLength, 1)
				So(body.TopVideos, ShouldHaveLength, 1)
			})
		})

		Convey("When artist detail is requested without a name", func() {
			rec := do(mux, http.MethodGet, "/api/artists/detail", nil)

			So(rec.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When artist detail names an unknown artist", func() {
			stub.detailErr = service.ErrArtistNotFound
			rec := do(mux, http.MethodGet, "/api/artists/detail?name=Nobody", nil)

			So(rec.Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("When artist history is requested without a name", func() {
			rec := do(mux, http.MethodGet, "/api/artists/history", nil)

			So(rec.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When track history is requested without an artist", func() {
			rec := do(mux, http.MethodGet, "/api/tracks/history?track=Song", nil)

			So(rec.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When nothing has ever been refreshed", func() {
			rec := do(mux, http.MethodGet, "/api/last-updated", nil)

			Convey("Then last-updated is null rather than an error", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				var body map[string]*string
				So(json.Unmarshal(rec.Body.Bytes(), &body), ShouldBeNil)
				So(body["lastUpdated"], ShouldBeNil)
			})
		})

		Convey("When no cycle has ever run", func() {
			rec := do(mux, http.MethodGet, "/api/refresh/status", nil)

			Convey("Then the status cycle is null", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				var body map[string]*domain.RefreshCycle
				So(json.Unmarshal(rec.Body.Bytes(), &body), ShouldBeNil)
				So(body["cycle"], ShouldBeNil)
			})
		})

		Convey("When the health endpoint is probed", func() {
			rec := do(mux, http.MethodGet, "/healthz", nil)

			So(rec.Code, ShouldEqual, http.StatusOK)
		})
	})
}
