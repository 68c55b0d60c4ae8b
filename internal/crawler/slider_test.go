package crawler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sjsage522/storecrawler/config"
	crawlerrors "sjsage522/storecrawler/pkg/errors"
)

const homeURL = "https://shop.example.com/"

func threeSlides() []slide {
	return []slide{
		{images: []string{"/s1.jpg"}, backgrounds: []string{"/bg1.jpg"}},
		{images: []string{"/s1.jpg", "/s2.jpg"}, backgrounds: []string{"/bg2.jpg"}},
		{images: []string{"/s3.jpg"}, backgrounds: []string{"/bg1.jpg", ""}},
	}
}

func newSlider(f PageFetcher, o *fakeOpener, maxCycles int) *SliderCrawler {
	p := config.DefaultProfile()
	// a nil *fakeOpener would still be a non-nil render.Opener
	if o == nil {
		return NewSliderCrawler(f, nil, testExtractor(), p.Slider, maxCycles)
	}
	return NewSliderCrawler(f, o, testExtractor(), p.Slider, maxCycles)
}

func TestInteractiveUnbounded(t *testing.T) {
	s := &fakeSession{slides: threeSlides()}
	o := &fakeOpener{session: s}

	got, err := newSlider(nil, o, 0).ExtractSliderImages(context.Background(), homeURL, SliderOptions{Interactive: true})
	require.NoError(t, err)

	assert.Equal(t, []string{"/s1.jpg", "/bg1.jpg", "/s2.jpg", "/bg2.jpg", "/s3.jpg"}, got)
	// clicks until the control disappears on the last slide
	assert.Equal(t, 2, s.clicks)
	assert.Equal(t, 1, s.closed)
	assert.Equal(t, []string{homeURL}, o.opened)
}

func TestInteractiveZeroClicks(t *testing.T) {
	s := &fakeSession{slides: threeSlides()}

	got, err := newSlider(nil, &fakeOpener{session: s}, 0).ExtractSliderImages(context.Background(), homeURL, SliderOptions{
		Interactive: true,
		MaxClicks:   Clicks(0),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"/s1.jpg", "/bg1.jpg"}, got)
	assert.Zero(t, s.clicks)
	assert.Equal(t, 1, s.closed)
}

func TestInteractiveClickLimit(t *testing.T) {
	s := &fakeSession{slides: threeSlides(), loop: true}

	got, err := newSlider(nil, &fakeOpener{session: s}, 0).ExtractSliderImages(context.Background(), homeURL, SliderOptions{
		Interactive: true,
		MaxClicks:   Clicks(1),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"/s1.jpg", "/bg1.jpg", "/s2.jpg", "/bg2.jpg"}, got)
	assert.Equal(t, 1, s.clicks)
	assert.Equal(t, 1, s.closed)
}

func TestInteractiveNoNextControl(t *testing.T) {
	s := &fakeSession{slides: threeSlides(), noNext: true}

	got, err := newSlider(nil, &fakeOpener{session: s}, 0).ExtractSliderImages(context.Background(), homeURL, SliderOptions{Interactive: true})
	require.NoError(t, err)

	assert.Equal(t, []string{"/s1.jpg", "/bg1.jpg"}, got)
	assert.Zero(t, s.clicks)
	assert.Equal(t, 1, s.closed)
}

func TestInteractiveClickFailureIsNotAnError(t *testing.T) {
	s := &fakeSession{
		slides:    threeSlides(),
		clickErr:  errors.New("element is detached"),
		failAfter: 1,
	}

	got, err := newSlider(nil, &fakeOpener{session: s}, 0).ExtractSliderImages(context.Background(), homeURL, SliderOptions{Interactive: true})
	require.NoError(t, err)

	assert.Equal(t, []string{"/s1.jpg", "/bg1.jpg", "/s2.jpg", "/bg2.jpg"}, got)
	assert.Equal(t, 1, s.clicks)
	assert.Equal(t, 1, s.closed)
}

func TestInteractiveQueryFailureIsNotAnError(t *testing.T) {
	s := &fakeSession{slides: threeSlides(), queryErr: errors.New("target closed")}

	got, err := newSlider(nil, &fakeOpener{session: s}, 0).ExtractSliderImages(context.Background(), homeURL, SliderOptions{Interactive: true})
	require.NoError(t, err)

	assert.Empty(t, got)
	assert.Equal(t, 1, s.closed)
}

func TestInteractiveCycleCap(t *testing.T) {
	// the control never goes away and the slides repeat forever
	s := &fakeSession{slides: threeSlides(), loop: true}

	got, err := newSlider(nil, &fakeOpener{session: s}, 7).ExtractSliderImages(context.Background(), homeURL, SliderOptions{Interactive: true})
	require.NoError(t, err)

	assert.Len(t, got, 5)
	assert.Equal(t, 6, s.clicks)
	assert.Equal(t, 7, s.queries/2)
	assert.Equal(t, 1, s.closed)
}

func TestInteractiveOpenFailure(t *testing.T) {
	o := &fakeOpener{err: errors.New("chromium not found")}

	got, err := newSlider(nil, o, 0).ExtractSliderImages(context.Background(), homeURL, SliderOptions{Interactive: true})
	require.Error(t, err)
	assert.True(t, crawlerrors.IsInteractionFailed(err))
	assert.Nil(t, got)
}

func TestInteractiveWithoutOpener(t *testing.T) {
	_, err := newSlider(nil, nil, 0).ExtractSliderImages(context.Background(), homeURL, SliderOptions{Interactive: true})
	assert.Error(t, err)
}

func TestInteractiveWaitsSlideDelay(t *testing.T) {
	s := &fakeSession{slides: threeSlides()}

	start := time.Now()
	_, err := newSlider(nil, &fakeOpener{session: s}, 0).ExtractSliderImages(context.Background(), homeURL, SliderOptions{
		Interactive: true,
		SlideDelay:  15 * time.Millisecond,
	})
	require.NoError(t, err)

	// once after opening and once after each of the two clicks
	assert.GreaterOrEqual(t, time.Since(start), 45*time.Millisecond)
}

func TestInteractiveCancelledDuringDelay(t *testing.T) {
	s := &fakeSession{slides: threeSlides(), loop: true}
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	got, err := newSlider(nil, &fakeOpener{session: s}, 0).ExtractSliderImages(ctx, homeURL, SliderOptions{
		Interactive: true,
		SlideDelay:  5 * time.Millisecond,
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotEmpty(t, got)
	assert.Equal(t, 1, s.closed)
}

func TestStaticNeverOpensSession(t *testing.T) {
	html := `<rs-module>
  <rs-slide><img class="tp-rs-img" src="/s1.jpg"><rs-sbg data-lazyload="/bg1.jpg"></rs-sbg></rs-slide>
  <rs-slide><img class="tp-rs-img" src="/s2.jpg"><rs-sbg data-lazyload="/s1.jpg"></rs-sbg></rs-slide>
</rs-module>`
	f := NewMockFetcher().On(homeURL, html)
	o := &fakeOpener{session: &fakeSession{slides: threeSlides()}}

	got, err := newSlider(f, o, 0).ExtractSliderImages(context.Background(), homeURL, SliderOptions{
		Interactive: false,
		MaxClicks:   Clicks(5),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"/s1.jpg", "/s2.jpg", "/bg1.jpg"}, got)
	assert.Empty(t, o.opened)
	assert.Equal(t, []string{homeURL}, f.Calls())
}

func TestStaticFetchFailure(t *testing.T) {
	f := NewMockFetcher().Fail(homeURL, crawlerrors.NewFetch(homeURL, 500, nil))

	_, err := newSlider(f, nil, 0).ExtractSliderImages(context.Background(), homeURL, SliderOptions{})
	require.Error(t, err)
	assert.True(t, crawlerrors.IsFetchFailed(err))
}

func TestInteractiveCancelledDuringClick(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := &fakeSession{slides: threeSlides(), clickErr: context.Canceled, failAfter: 1, onClickErr: cancel}

	got, err := newSlider(nil, &fakeOpener{session: s}, 0).ExtractSliderImages(ctx, homeURL, SliderOptions{Interactive: true})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"/s1.jpg", "/bg1.jpg", "/s2.jpg", "/bg2.jpg"}, got)
	assert.Equal(t, 1, s.clicks)
	assert.Equal(t, 1, s.closed)
}
