package services

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"google.golang.org/genai"
)

// textResponse builds a single-candidate text response.
func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{
				Parts: []*genai.Part{{Text: text}},
			},
		}},
	}
}

// fakeGenerator replays a queue of scripted responses.
type fakeGenerator struct {
	mu        sync.Mutex
	responses []*genai.GenerateContentResponse
	errs      []error
	calls     int
}

func (f *fakeGenerator) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.calls
	f.calls++
	var resp *genai.GenerateContentResponse
	var err error
	if i < len(f.responses) {
		resp = f.responses[i]
	}
	if i < len(f.errs) {
		err = f.errs[i]
	}
	return resp, err
}

// fakeExtractor returns canned OCR output.
type fakeExtractor struct {
	text string
	err  error
}

func (f *fakeExtractor) ExtractText(ctx context.Context, image []byte) (string, error) {
	return f.text, f.err
}

func newTestDescribers(gen Generator, ocr TextExtractor, tmpDir string) *DescriberService {
	return NewDescriberService(gen, ocr, "vision-model", "media-model", 30*time.Second, tmpDir)
}

func TestDescribeImageWithoutOCRTextUsesVisionOnly(t *testing.T) {
	gen := &fakeGenerator{responses: []*genai.GenerateContentResponse{
		textResponse("An LG front-load washing machine with a blinking display."),
	}}
	d := newTestDescribers(gen, &fakeExtractor{text: ""}, t.TempDir())

	desc := d.DescribeImage(context.Background(), []byte("jpeg-bytes"))
	assert.Equal(t, "An LG front-load washing machine with a blinking display.", desc)
	assert.Equal(t, 1, gen.calls)
}

func TestDescribeImageWithOCRTextCombinesBothSignals(t *testing.T) {
	gen := &fakeGenerator{responses: []*genai.GenerateContentResponse{
		textResponse("A washing machine control panel."),
		textResponse("This is an LG WM3488HW showing the OE drainage error."),
	}}
	d := newTestDescribers(gen, &fakeExtractor{text: "LG WM3488HW\nError Code: OE"}, t.TempDir())

	desc := d.DescribeImage(context.Background(), []byte("jpeg-bytes"))
	assert.Equal(t, "This is an LG WM3488HW showing the OE drainage error.", desc)
	assert.Equal(t, 2, gen.calls, "expected one vision call and one diagnosis call")
}

func TestDescribeImageVisionFailureReturnsPlaceholder(t *testing.T) {
	gen := &fakeGenerator{errs: []error{errors.New("model unavailable")}}
	d := newTestDescribers(gen, &fakeExtractor{text: ""}, t.TempDir())

	desc := d.DescribeImage(context.Background(), []byte("jpeg-bytes"))
	assert.Equal(t, "Could not generate visual description.", desc)
}

func TestDescribeImageOCRFailureDegradesToVision(t *testing.T) {
	gen := &fakeGenerator{responses: []*genai.GenerateContentResponse{
		textResponse("A microwave with a cracked door."),
	}}
	d := newTestDescribers(gen, &fakeExtractor{err: errors.New("transcription failed")}, t.TempDir())

	desc := d.DescribeImage(context.Background(), []byte("jpeg-bytes"))
	assert.Equal(t, "A microwave with a cracked door.", desc)
}

func TestDescribeAudioEmptyResponseReturnsPlaceholder(t *testing.T) {
	gen := &fakeGenerator{responses: []*genai.GenerateContentResponse{textResponse("")}}
	d := newTestDescribers(gen, &fakeExtractor{}, t.TempDir())

	desc := d.DescribeAudio(context.Background(), []byte("mp3-bytes"))
	assert.Equal(t, "Could not generate description.", desc)
}

func TestDescribeVideoCleansUpTempFile(t *testing.T) {
	tmpDir := t.TempDir()
	gen := &fakeGenerator{responses: []*genai.GenerateContentResponse{
		textResponse("A dishwasher leaking from the door seal."),
	}}
	d := newTestDescribers(gen, &fakeExtractor{}, tmpDir)

	desc := d.DescribeVideo(context.Background(), []byte("mp4-bytes"))
	assert.Equal(t, "A dishwasher leaking from the door seal.", desc)

	entries, err := os.ReadDir(tmpDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "staged video file should be removed after the call")
}

func TestDescribeVideoCleansUpTempFileOnModelFailure(t *testing.T) {
	tmpDir := t.TempDir()
	gen := &fakeGenerator{errs: []error{errors.New("model unavailable")}}
	d := newTestDescribers(gen, &fakeExtractor{}, tmpDir)

	desc := d.DescribeVideo(context.Background(), []byte("mp4-bytes"))
	assert.Contains(t, desc, "Error:")

	entries, err := os.ReadDir(tmpDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "staged video file should be removed even on failure")
}

func TestDescribeVideoConcurrentCallsDoNotCollide(t *testing.T) {
	tmpDir := t.TempDir()
	gen := &fakeGenerator{responses: []*genai.GenerateContentResponse{
		textResponse("clip one"),
		textResponse("clip two"),
	}}
	d := newTestDescribers(gen, &fakeExtractor{}, tmpDir)

	done := make(chan string, 2)
	go func() { done <- d.DescribeVideo(context.Background(), []byte("first")) }()
	go func() { done <- d.DescribeVideo(context.Background(), []byte("second")) }()

	for i := 0; i < 2; i++ {
		desc := <-done
		assert.NotContains(t, desc, "Error:")
	}

	entries, err := os.ReadDir(tmpDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
