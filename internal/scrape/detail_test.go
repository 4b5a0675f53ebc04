// Path: internal/scrape/detail_test.go
package scrape_test

import (
	"testing"

	"chartwatch/internal/scrape"
	. "github.com/smartystreets/goconvey/convey"
)

const songsTable = `
<html><body>
<table class="addpos sortable">
  <tr><th>Song Title</th><th>Streams</th><th>Daily</th></tr>
  <tr><td><a href="https://open.spotify.com/track/abc123">Blinding Lights</a></td><td>4,501,234.8</td><td>5,992.9</td></tr>
  <tr><td><a href="../track/def456.html">Starboy</a></td><td>3,100,000.2</td><td>4,100.0</td></tr>
  <tr><td>Save Your Tears</td><td>2,800,500.0</td><td>3,900.5</td></tr>
  <tr><td><a href="../track/zzz999.html">Broken Row</a></td><td>n/a</td><td>1.0</td></tr>
  <tr><td><a href="../track/ggg000.html">Fourth Song</a></td><td>2,000,000.0</td><td>3,000.0</td></tr>
</table>
</body></html>`

const videosTable = `
<html><body>
<table class="sortable">
  <tr><th>Video</th><th>Views</th><th>Yesterday</th><th>Published</th></tr>
  <tr><td><a href="../video/vid111.html">Blinding Lights (Official Video)</a></td><td>900,123,456</td><td>450,000</td><td>2019</td></tr>
  <tr><td>Unlinked Video</td><td>500,000,000</td><td>200,000</td><td>2020</td></tr>
</table>
</body></html>`

func TestParseTopSongs(t *testing.T) {
	Convey("Given an artist's top songs page", t, func() {
		songs, err := scrape.ParseTopSongs(songsTable, 3)

		Convey("Then parsing succeeds and rows without a usable total are skipped", func() {
			So(err, ShouldBeNil)
			So(songs, ShouldHaveLength, 3)
			So(songs[0].TrackName, ShouldEqual, "Blinding Lights")
			So(songs[1].TrackName, ShouldEqual, "Starboy")
			So(songs[2].TrackName, ShouldEqual, "Save Your Tears")
		})

		Convey("Then stream figures keep their fractional part", func() {
			So(songs[0].TotalStreams, ShouldEqual, 4501234.8)
			So(songs[0].DailyStreams, ShouldEqual, 5992.9)
		})

		Convey("Then a full catalog link passes through", func() {
			So(songs[0].SpotifyURL, ShouldEqual, "https://open.spotify.com/track/abc123")
		})

		Convey("Then a relative link is normalized to a full catalog URL", func() {
			So(songs[1].SpotifyURL, ShouldEqual, "https://open.spotify.com/track/def456")
		})

		Convey("Then an unlinked row carries no URL", func() {
			So(songs[2].SpotifyURL, ShouldBeEmpty)
		})

		Convey("Then the list is capped at the requested limit", func() {
			for _, song := range songs {
				So(song.TrackName, ShouldNotEqual, "Fourth Song")
			}
		})
	})
}

func TestParseTopVideos(t *testing.T) {
	Convey("Given an artist's top videos page", t, func() {
		videos, err := scrape.ParseTopVideos(videosTable, 3)

		Convey("Then linked and unlinked rows both parse", func() {
			So(err, ShouldBeNil)
			So(videos, ShouldHaveLength, 2)
			So(videos[0].VideoTitle, ShouldEqual, "Blinding Lights (Official Video)")
			So(videos[0].TotalViews, ShouldEqual, 900123456)
			So(videos[0].YesterdayViews, ShouldEqual, 450000)
			So(videos[1].YouTubeURL, ShouldBeEmpty)
		})

		Convey("Then the video link becomes a watch URL", func() {
			So(videos[0].YouTubeURL, ShouldEqual, "https://www.youtube.com/watch?v=vid111")
		})
	})
}
