package services

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"google.golang.org/genai"
)

// Placeholder strings surfaced when a modality cannot be described. The
// describers never propagate a hard failure: callers always receive a
// user-displayable string.
const (
	couldNotDescribe       = "Could not generate description."
	couldNotDescribeVisual = "Could not generate visual description."
)

// TextExtractor pulls printed text (model numbers, error codes) out of an
// image. The default implementation asks the vision model to transcribe;
// any OCR engine can be substituted.
type TextExtractor interface {
	ExtractText(ctx context.Context, image []byte) (string, error)
}

// DescriberService converts image, audio, and video inputs into natural
// language descriptions for the agent. Each describer is independently
// fallible and absorbs its own failures.
type DescriberService struct {
	gen         Generator
	ocr         TextExtractor
	visionModel string
	mediaModel  string
	timeout     time.Duration
	tmpDir      string
}

// NewDescriberService creates the describers. A nil extractor defaults to
// model-based transcription; an empty tmpDir defaults to os.TempDir().
func NewDescriberService(gen Generator, ocr TextExtractor, visionModel, mediaModel string, timeout time.Duration, tmpDir string) *DescriberService {
	if ocr == nil {
		ocr = &geminiTextExtractor{gen: gen, model: visionModel}
	}
	if tmpDir == "" {
		tmpDir = os.TempDir()
	}
	return &DescriberService{
		gen:         gen,
		ocr:         ocr,
		visionModel: visionModel,
		mediaModel:  mediaModel,
		timeout:     timeout,
		tmpDir:      tmpDir,
	}
}

const visionPrompt = "Describe this image. What appliance is it, what model, and what issue might it have? Be specific and technical."

// fewShotExamples anchor the combined OCR + vision diagnosis. OCR text is
// the stronger signal when present, so the examples pair transcripts with
// the expected diagnostic register.
var fewShotExamples = []struct {
	ocr  string
	desc string
}{
	{
		ocr:  "HP Pavilion dv6000\nOperating System not found",
		desc: "This is an HP Pavilion dv6000 laptop. The screen shows a BIOS error message: 'Operating System not found', which usually indicates a missing bootloader or a failed hard disk.",
	},
	{
		ocr:  "LG Washing Machine Model WM3488HW\nError Code: OE",
		desc: "This appears to be an LG WM3488HW washing machine. The OE error code points to a drainage issue, likely due to a clogged drain filter or blocked hose.",
	},
	{
		ocr:  "Canon PIXMA MG2522\nPaper Jam\nError E03",
		desc: "This is a Canon PIXMA MG2522 printer. It shows Error E03 and a 'Paper Jam' message, which means paper is likely stuck inside the feed mechanism or rollers.",
	},
}

// DescribeImage runs OCR first; when the extracted text is meaningful it
// combines it with a vision description in a few-shot diagnosis prompt,
// otherwise it returns the vision description alone.
func (d *DescriberService) DescribeImage(ctx context.Context, image []byte) string {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	ocrText, err := d.ocr.ExtractText(ctx, image)
	if err != nil {
		log.Printf("DESCRIBER: image text extraction failed: %v", err)
		ocrText = ""
	}
	ocrText = CleanText(ocrText)

	if ocrText == "" {
		return d.describeVision(ctx, image)
	}

	visual := d.describeVision(ctx, image)

	contents := make([]*genai.Content, 0, len(fewShotExamples)*2+1)
	for _, ex := range fewShotExamples {
		contents = append(contents,
			genai.NewContentFromText("OCR Text:\n"+ex.ocr, genai.RoleUser),
			genai.NewContentFromText(ex.desc, genai.RoleModel),
		)
	}
	final := fmt.Sprintf(
		"OCR Text:\n%s\n\nVisual Description:\n%s\n\nUsing both the OCR and visual info, describe the appliance, its model (if possible), and the issue. Be specific and technical. If uncertain, make an educated guess and explain.",
		ocrText, visual,
	)
	contents = append(contents, genai.NewContentFromText(final, genai.RoleUser))

	cfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr[float32](0.2),
		TopP:            genai.Ptr[float32](0.7),
		TopK:            genai.Ptr[float32](40),
		MaxOutputTokens: 500,
	}
	resp, err := d.gen.GenerateContent(ctx, d.visionModel, contents, cfg)
	if err != nil {
		log.Printf("DESCRIBER: image diagnosis call failed: %v", err)
		return couldNotDescribe
	}
	text := responseText(resp)
	if text == "" {
		return couldNotDescribe
	}
	return CleanText(text)
}

func (d *DescriberService) describeVision(ctx context.Context, image []byte) string {
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(visionPrompt),
			genai.NewPartFromBytes(image, "image/jpeg"),
		}, genai.RoleUser),
	}
	resp, err := d.gen.GenerateContent(ctx, d.visionModel, contents, nil)
	if err != nil {
		log.Printf("DESCRIBER: vision call failed: %v", err)
		return couldNotDescribeVisual
	}
	text := responseText(resp)
	if text == "" {
		return couldNotDescribeVisual
	}
	return CleanText(text)
}

// DescribeAudio produces a structured description of an audio clip.
func (d *DescriberService) DescribeAudio(ctx context.Context, audio []byte) string {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText("Describe the audio in detail. Identify the appliance or object involved, model if possible, and any technical issues or context. Break down the sounds or speech in a structured way."),
			genai.NewPartFromBytes(audio, "audio/mpeg"),
		}, genai.RoleUser),
	}
	resp, err := d.gen.GenerateContent(ctx, d.mediaModel, contents, nil)
	if err != nil {
		log.Printf("DESCRIBER: audio call failed: %v", err)
		return couldNotDescribe
	}
	text := responseText(resp)
	if text == "" {
		return couldNotDescribe
	}
	return CleanText(text)
}

// DescribeVideo stages the decoded payload in a uniquely named scratch file
// for the duration of the call and removes it on every exit path. The
// description, a placeholder, or an error string is returned; it never
// raises past its own boundary.
func (d *DescriberService) DescribeVideo(ctx context.Context, video []byte) (result string) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	tmp, err := os.CreateTemp(d.tmpDir, "repair-video-*.mp4")
	if err != nil {
		return fmt.Sprintf("Error: %v", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(video); err != nil {
		tmp.Close()
		return fmt.Sprintf("Error: %v", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Sprintf("Error: %v", err)
	}

	staged, err := os.ReadFile(tmpPath)
	if err != nil {
		return fmt.Sprintf("Error: %v", err)
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(staged, "video/mp4"),
			genai.NewPartFromText("Describe this video in detail. Include visual content, actions, objects, and transcribe the audio if present. Try to identify any appliances, devices, or repair scenarios shown."),
		}, genai.RoleUser),
	}
	resp, err := d.gen.GenerateContent(ctx, d.mediaModel, contents, nil)
	if err != nil {
		return fmt.Sprintf("Error: %v", err)
	}
	text := responseText(resp)
	if text == "" {
		return couldNotDescribe
	}
	return CleanText(text)
}

// geminiTextExtractor transcribes visible text with the vision model.
type geminiTextExtractor struct {
	gen   Generator
	model string
}

// ExtractText implements TextExtractor.
func (g *geminiTextExtractor) ExtractText(ctx context.Context, image []byte) (string, error) {
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText("Transcribe every piece of text visible in this image, exactly as written. Respond with only the transcribed text. If the image contains no readable text, respond with an empty message."),
			genai.NewPartFromBytes(image, "image/jpeg"),
		}, genai.RoleUser),
	}
	resp, err := g.gen.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("text transcription failed: %w", err)
	}
	return responseText(resp), nil
}
