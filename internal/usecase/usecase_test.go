package usecase

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkuleshov/langaudit/internal/audio"
	"github.com/pkuleshov/langaudit/internal/ports"
	"github.com/pkuleshov/langaudit/internal/types"
)

const rate = 16000

// speech/silence building blocks for synthetic clips. 8000 is well above the
// -40 dBFS test threshold, 0 is hard silence.
func clipOf(parts ...int) *audio.Clip {
	// parts alternate: speechMs, silenceMs, speechMs, ...
	var samples []int16
	speech := true
	for _, ms := range parts {
		amp := int16(0)
		if speech {
			amp = 8000
		}
		n := rate * ms / 1000
		for i := 0; i < n; i++ {
			samples = append(samples, amp)
		}
		speech = !speech
	}
	return &audio.Clip{SampleRate: rate, Samples: samples}
}

type fakeCodec struct {
	clips     map[string]*audio.Clip // missing key => decode error
	exports   []string
	exportErr error
}

func (f *fakeCodec) Decode(_ context.Context, path string) (*audio.Clip, error) {
	c, ok := f.clips[path]
	if !ok {
		return nil, fmt.Errorf("decode %s: corrupt header", path)
	}
	return c, nil
}

func (f *fakeCodec) Export(_ context.Context, _ *audio.Clip, outPath string) error {
	if f.exportErr != nil {
		return f.exportErr
	}
	f.exports = append(f.exports, filepath.Base(outPath))
	return nil
}

func (f *fakeCodec) ProbeDurationMs(_ context.Context, _ string) (int64, error) { return 0, nil }

type asrReply struct {
	tr  types.Transcription
	err error
}

// fakeASR replays scripted replies in call order; segments are transcribed
// strictly sequentially, so the order is deterministic.
type fakeASR struct {
	replies []asrReply
	calls   int
}

func (f *fakeASR) Transcribe(_ context.Context, _ *audio.Clip) (types.Transcription, error) {
	if f.calls >= len(f.replies) {
		return types.Transcription{}, errors.New("fakeASR: no reply scripted")
	}
	r := f.replies[f.calls]
	f.calls++
	return r.tr, r.err
}

func (f *fakeASR) Model() string  { return "ggml-test.bin" }
func (f *fakeASR) Device() string { return "cpu" }

var _ ports.AudioCodec = (*fakeCodec)(nil)
var _ ports.Recognizer = (*fakeASR)(nil)

func reply(text, lang string, confs ...float64) asrReply {
	return asrReply{tr: types.Transcription{Text: text, Language: lang, Confidences: confs}}
}

func baseInput(files ...string) Input {
	return Input{
		Files:               files,
		ConfidenceThreshold: 0.7,
		MinSilenceLenMs:     500,
		SilenceThreshDBFS:   -40,
		MinSegmentLenMs:     1000,
		MergeFlagged:        true,
		MaxMergeGapMs:       1000,
		AuthorizedLanguages: []string{"en", "hi"},
	}
}

func TestRun_ClassifiesAndOrdersRows(t *testing.T) {
	t.Parallel()

	// Each file: 1200ms speech | 700ms gap | 1200ms speech => 2 segments.
	codec := &fakeCodec{clips: map[string]*audio.Clip{
		"/in/a.mp3": clipOf(1200, 700, 1200),
		"/in/b.mp3": clipOf(1200, 700, 1200),
	}}
	asr := &fakeASR{replies: []asrReply{
		reply("all good here", "en", 0.9),
		reply("quelle surprise", "fr", 0.95),
		reply("mumbling", "en", 0.3),
		reply("sab theek hai", "hi", 0.9),
	}}

	res, err := New(Deps{Codec: codec, ASR: asr}).Run(context.Background(), baseInput("/in/a.mp3", "/in/b.mp3"))
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(res.Rows) != 4 {
		t.Fatalf("expected 4 rows, got %d", len(res.Rows))
	}

	// Rows follow file input order, then segment start order.
	wantFiles := []string{"a.mp3", "a.mp3", "b.mp3", "b.mp3"}
	for i, w := range wantFiles {
		if res.Rows[i].File != w {
			t.Fatalf("row %d file = %s, want %s", i, res.Rows[i].File, w)
		}
	}
	for i := 1; i < len(res.Rows); i++ {
		if res.Rows[i].File == res.Rows[i-1].File && res.Rows[i].StartMs < res.Rows[i-1].StartMs {
			t.Fatalf("rows out of start order within file: %v then %v", res.Rows[i-1], res.Rows[i])
		}
	}

	if res.Rows[0].Flagged {
		t.Fatalf("row 0 should pass, got %+v", res.Rows[0])
	}
	if res.Rows[1].Reason != types.ReasonLanguageMismatch {
		t.Fatalf("row 1 reason = %s, want language-mismatch", res.Rows[1].Reason)
	}
	if !strings.Contains(res.Rows[1].Detail, "fr") {
		t.Fatalf("row 1 detail should carry the detected language: %q", res.Rows[1].Detail)
	}
	if res.Rows[2].Reason != types.ReasonLowConfidence {
		t.Fatalf("row 2 reason = %s, want low-confidence", res.Rows[2].Reason)
	}
	if res.Rows[3].Flagged {
		t.Fatalf("row 3 should pass, got %+v", res.Rows[3])
	}

	// ClipsDir is unset, so no clips are exported.
	want := types.Stats{
		TotalFiles: 2, SuccessfulFiles: 2,
		TotalSegments: 4, FlaggedSegments: 2,
	}
	if res.Stats != want {
		t.Fatalf("stats = %+v, want %+v", res.Stats, want)
	}
}

func TestRun_NoSpeechFile(t *testing.T) {
	t.Parallel()

	codec := &fakeCodec{clips: map[string]*audio.Clip{
		"/in/silent.wav": clipOf(0, 3000), // 3s of silence
	}}
	res, err := New(Deps{Codec: codec, ASR: &fakeASR{}}).Run(context.Background(), baseInput("/in/silent.wav"))
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(res.Rows) != 1 {
		t.Fatalf("expected exactly 1 placeholder row, got %d", len(res.Rows))
	}
	row := res.Rows[0]
	if !row.Flagged || row.Reason != types.ReasonNoSpeech {
		t.Fatalf("row = %+v, want flagged no-speech-detected", row)
	}
	if row.ReasonText() != "No speech detected" {
		t.Fatalf("reason text = %q", row.ReasonText())
	}
	if res.Stats.FailedFiles != 1 || res.Stats.SuccessfulFiles != 0 {
		t.Fatalf("stats = %+v, want 1 failed file", res.Stats)
	}
	if res.Stats.TotalSegments != 0 {
		t.Fatalf("placeholder rows must not count as segments: %+v", res.Stats)
	}
}

func TestRun_DecodeFailureIsolatedToFile(t *testing.T) {
	t.Parallel()

	codec := &fakeCodec{clips: map[string]*audio.Clip{
		"/in/1.mp3": clipOf(1500),
		// /in/2.mp3 missing => decode error
		"/in/3.mp3": clipOf(1500),
	}}
	asr := &fakeASR{replies: []asrReply{
		reply("one", "en", 0.9),
		reply("three", "en", 0.9),
	}}

	res, err := New(Deps{Codec: codec, ASR: asr}).Run(context.Background(),
		baseInput("/in/1.mp3", "/in/2.mp3", "/in/3.mp3"))
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(res.Rows) != 3 {
		t.Fatalf("expected 3 rows, got %d: %v", len(res.Rows), res.Rows)
	}
	bad := res.Rows[1]
	if bad.File != "2.mp3" || bad.Reason != types.ReasonProcessingError || !bad.Flagged {
		t.Fatalf("failure row = %+v", bad)
	}
	if bad.Text != "ERROR DURING PROCESSING" || bad.Language != "N/A" || bad.Confidence != 0 {
		t.Fatalf("failure row fields = %+v", bad)
	}
	if res.Stats.FailedFiles != 1 || res.Stats.SuccessfulFiles != 2 {
		t.Fatalf("stats = %+v, want failed=1 successful=2", res.Stats)
	}
}

func TestRun_TranscriptionErrorDoesNotAbortFile(t *testing.T) {
	t.Parallel()

	codec := &fakeCodec{clips: map[string]*audio.Clip{
		"/in/a.mp3": clipOf(1200, 700, 1200),
	}}
	asr := &fakeASR{replies: []asrReply{
		{err: errors.New("engine hiccup")},
		reply("fine now", "en", 0.9),
	}}

	res, err := New(Deps{Codec: codec, ASR: asr}).Run(context.Background(), baseInput("/in/a.mp3"))
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(res.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(res.Rows))
	}
	bad := res.Rows[0]
	if bad.Reason != types.ReasonTranscriptionError || !bad.Flagged || bad.Confidence != 0 {
		t.Fatalf("error row = %+v", bad)
	}
	if !strings.Contains(bad.Detail, "engine hiccup") {
		t.Fatalf("error row detail should carry the cause: %q", bad.Detail)
	}
	if bad.StartMs == 0 && bad.EndMs == 0 {
		t.Fatalf("error row must keep the interval times: %+v", bad)
	}
	if res.Rows[1].Flagged {
		t.Fatalf("second segment should pass: %+v", res.Rows[1])
	}
	// The file still succeeds and both intervals count as segments.
	if res.Stats.SuccessfulFiles != 1 || res.Stats.FailedFiles != 0 {
		t.Fatalf("stats = %+v, want the file successful", res.Stats)
	}
	if res.Stats.TotalSegments != 2 || res.Stats.FlaggedSegments != 1 {
		t.Fatalf("stats = %+v, want 2 segments / 1 flagged", res.Stats)
	}
}

func TestRun_MergedClipExport(t *testing.T) {
	t.Parallel()

	// Segments at (0,1000), (1700,2700), (5700,6700): gaps 700 and 3000.
	codec := &fakeCodec{clips: map[string]*audio.Clip{
		"/in/long.mp3": clipOf(1000, 700, 1000, 3000, 1000),
	}}
	asr := &fakeASR{replies: []asrReply{
		reply("eins", "de", 0.9),
		reply("zwei", "de", 0.9),
		reply("drei", "de", 0.9),
	}}

	in := baseInput("/in/long.mp3")
	in.ClipsDir = "/out/clips"

	res, err := New(Deps{Codec: codec, ASR: asr}).Run(context.Background(), in)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	wantExports := []string{
		"long_merged1_0ms_to_2700ms.wav",
		"long_merged2_5700ms_to_6700ms.wav",
	}
	if len(codec.exports) != len(wantExports) {
		t.Fatalf("exports = %v, want %v", codec.exports, wantExports)
	}
	for i, w := range wantExports {
		if codec.exports[i] != w {
			t.Fatalf("export %d = %s, want %s", i, codec.exports[i], w)
		}
	}
	if res.Stats.MergedClips != 2 {
		t.Fatalf("MergedClips = %d, want 2", res.Stats.MergedClips)
	}
}

func TestRun_IndividualExportWhenMergeDisabled(t *testing.T) {
	t.Parallel()

	codec := &fakeCodec{clips: map[string]*audio.Clip{
		"/in/long.mp3": clipOf(1000, 700, 1000, 3000, 1000),
	}}
	asr := &fakeASR{replies: []asrReply{
		reply("bad", "de", 0.9),
		reply("ok", "en", 0.9), // unflagged, must not be exported
		reply("bad again", "de", 0.9),
	}}

	in := baseInput("/in/long.mp3")
	in.ClipsDir = "/out/clips"
	in.MergeFlagged = false

	res, err := New(Deps{Codec: codec, ASR: asr}).Run(context.Background(), in)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	// Ordinals are 1-based positions within the file's segment list.
	wantExports := []string{
		"long_segment1_0ms_to_1000ms.wav",
		"long_segment3_5700ms_to_6700ms.wav",
	}
	if len(codec.exports) != 2 || codec.exports[0] != wantExports[0] || codec.exports[1] != wantExports[1] {
		t.Fatalf("exports = %v, want %v", codec.exports, wantExports)
	}
	if res.Stats.MergedClips != 0 {
		t.Fatalf("MergedClips = %d, want 0 with merging disabled", res.Stats.MergedClips)
	}
}

func TestRun_ExportFailureIsRecoverable(t *testing.T) {
	t.Parallel()

	codec := &fakeCodec{
		clips:     map[string]*audio.Clip{"/in/a.mp3": clipOf(1500)},
		exportErr: errors.New("disk full"),
	}
	asr := &fakeASR{replies: []asrReply{reply("nope", "de", 0.9)}}

	in := baseInput("/in/a.mp3")
	in.ClipsDir = "/out/clips"

	res, err := New(Deps{Codec: codec, ASR: asr}).Run(context.Background(), in)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Stats.MergedClips != 0 {
		t.Fatalf("failed export must not count: %+v", res.Stats)
	}
	// The segment row keeps its policy flag regardless of the lost clip.
	if res.Rows[0].Reason != types.ReasonLanguageMismatch {
		t.Fatalf("row = %+v", res.Rows[0])
	}
	if res.Stats.SuccessfulFiles != 1 {
		t.Fatalf("file must still succeed: %+v", res.Stats)
	}
}

func TestRun_CancelledContextStopsSchedulingFiles(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	codec := &fakeCodec{clips: map[string]*audio.Clip{"/in/a.mp3": clipOf(1500)}}
	_, err := New(Deps{Codec: codec, ASR: &fakeASR{}}).Run(ctx, baseInput("/in/a.mp3"))
	if err == nil {
		t.Fatal("expected cancellation error")
	}
}

func TestRun_TotalFilesFixedAtBatchStart(t *testing.T) {
	t.Parallel()

	codec := &fakeCodec{clips: map[string]*audio.Clip{}} // every decode fails
	res, err := New(Deps{Codec: codec, ASR: &fakeASR{}}).Run(context.Background(),
		baseInput("/in/x.mp3", "/in/y.mp3"))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Stats.TotalFiles != 2 || res.Stats.FailedFiles != 2 {
		t.Fatalf("stats = %+v", res.Stats)
	}
}
