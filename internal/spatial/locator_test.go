package spatial

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/satriahrh/fixit/server/domain"
	"github.com/satriahrh/fixit/server/domain/entities"
)

// fakeGateway answers Invoke by request purpose
type fakeGateway struct {
	mu      sync.Mutex
	replies map[string][]string
	errs    map[string]error
	calls   []entities.ModelRequest
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{replies: map[string][]string{}, errs: map[string]error{}}
}

func (f *fakeGateway) reply(purpose string, raw ...string) {
	f.replies[purpose] = append(f.replies[purpose], raw...)
}

func (f *fakeGateway) Invoke(_ context.Context, req entities.ModelRequest) (*entities.ModelResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	if err := f.errs[req.Purpose]; err != nil {
		return nil, err
	}
	queue := f.replies[req.Purpose]
	if len(queue) == 0 {
		return nil, errors.New("no scripted reply for " + req.Purpose)
	}
	raw := queue[0]
	if len(queue) > 1 {
		f.replies[req.Purpose] = queue[1:]
	}
	return &entities.ModelResult{Raw: []byte(raw)}, nil
}

func (f *fakeGateway) InvokeGrounded(context.Context, entities.ModelRequest) (*entities.GroundingResult, error) {
	return nil, errors.New("not scripted")
}

func (f *fakeGateway) QuotaStatus() entities.QuotaStatus { return entities.QuotaStatus{} }
func (f *fakeGateway) ResetBreaker()                     {}
func (f *fakeGateway) BreakerOpen() bool                 { return false }

func (f *fakeGateway) purposes() []string {
	var out []string
	for _, c := range f.calls {
		out = append(out, c.Purpose)
	}
	return out
}

var testImage = &entities.ImagePart{Data: []byte{0xff}, MIMEType: "image/jpeg", Width: 1000, Height: 800}

var router = &entities.DeviceProfile{DeviceType: "WiFi router", Confidence: 0.9, Components: []string{"antenna", "LEDs"}}

func newTestLocator(t *testing.T, gw *fakeGateway) *Locator {
	return NewLocator(gw, 0, zaptest.NewLogger(t))
}

func TestLocateAllNoTargets(t *testing.T) {
	gw := newFakeGateway()
	results, err := newTestLocator(t, gw).LocateAll(context.Background(), testImage, nil, 1000, 800, router)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Empty(t, gw.calls)
}

func TestLocateAllRejectsBadInput(t *testing.T) {
	l := newTestLocator(t, newFakeGateway())
	_, err := l.LocateAll(context.Background(), nil, []string{"fan"}, 1000, 800, router)
	assert.Error(t, err)
	_, err = l.LocateAll(context.Background(), testImage, []string{"fan"}, 0, 800, router)
	assert.Error(t, err)
}

func TestLocateAllSingleTarget(t *testing.T) {
	gw := newFakeGateway()
	gw.reply(PurposeLocateSingle, `{"component_name":"reset","component_visible":true,"visibility_status":"visible",
		"spatial_description":"back panel, left of the power jack","confidence":0.8,
		"bounding_box":{"x_min":0.1,"y_min":0.5,"x_max":0.2,"y_max":0.6}}`)

	results, err := newTestLocator(t, gw).LocateAll(context.Background(), testImage, []string{"reset button"}, 1000, 800, router)

	require.NoError(t, err)
	require.Len(t, results, 1)
	r := results[0]
	assert.Equal(t, "reset button", r.Target)
	assert.Equal(t, entities.StatusFound, r.Status)
	require.NotNil(t, r.BoundingBox)
	assert.Equal(t, entities.PixelBox{XMin: 100, YMin: 400, XMax: 200, YMax: 480}, *r.BoundingBox)
	assert.Equal(t, []string{PurposeLocateSingle}, gw.purposes())
	assert.Equal(t, int32(4000), gw.calls[0].MaxOutputTokens)
}

func TestLocateAllBatchMapsUnnamedEntries(t *testing.T) {
	gw := newFakeGateway()
	gw.reply(PurposeLocateBatch, `{"results":[
		{"target":"psu","status":"found","component_visible":true,"confidence":0.9,"spatial_description":"bottom",
		 "bounding_box":{"x_min":0.1,"y_min":0.7,"x_max":0.5,"y_max":0.95}},
		{"target":"","status":"found","component_visible":true,"confidence":0.7,"spatial_description":"middle",
		 "bounding_box":{"x_min":0.4,"y_min":0.3,"x_max":0.6,"y_max":0.4}}
	]}`)

	results, err := newTestLocator(t, gw).LocateAll(context.Background(), testImage, []string{"fan", "psu", "ram"}, 1000, 800, router)

	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "psu", results[0].Target)
	assert.Equal(t, "ram", results[1].Target)
	assert.Equal(t, entities.StatusFound, results[1].Status)
	assert.Equal(t, "fan", results[2].Target)
	assert.Equal(t, entities.StatusNotVisible, results[2].Status)
	for _, r := range results {
		assert.True(t, Consistent(r), r.Target)
	}
	assert.Equal(t, []string{PurposeLocateBatch}, gw.purposes())
	assert.Equal(t, int32(16000), gw.calls[0].MaxOutputTokens)
}

func TestLocateAllBatchEmptyResultsSkipsFallback(t *testing.T) {
	gw := newFakeGateway()
	gw.reply(PurposeLocateBatch, `{"results":[]}`)

	results, err := newTestLocator(t, gw).LocateAll(context.Background(), testImage, []string{"fan", "psu", "ram"}, 1000, 800, router)

	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Equal(t, []string{PurposeLocateBatch}, gw.purposes())
}

func TestLocateAllBatchFallsBackOnMalformedReply(t *testing.T) {
	gw := newFakeGateway()
	gw.reply(PurposeLocateBatch, `{"components":"fan, psu"}`)
	gw.reply(PurposeLocateSingle,
		`{"component_visible":false,"visibility_status":"not_visible","visibility_reason":"behind the cover","confidence":0.2}`,
		`{"component_visible":false,"visibility_status":"not_applicable","confidence":0.9}`,
	)

	results, err := newTestLocator(t, gw).LocateAll(context.Background(), testImage, []string{"fan", "psu"}, 1000, 800, router)

	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "fan", results[0].Target)
	assert.Equal(t, entities.StatusNotVisible, results[0].Status)
	assert.Equal(t, "behind the cover", results[0].Reasoning)
	assert.Equal(t, "psu", results[1].Target)
	assert.Equal(t, entities.StatusNotPresent, results[1].Status)
	assert.Equal(t, []string{PurposeLocateBatch, PurposeLocateSingle, PurposeLocateSingle}, gw.purposes())
}

func TestLocateAllBatchErrorMarksEveryTarget(t *testing.T) {
	gw := newFakeGateway()
	gw.errs[PurposeLocateBatch] = domain.ErrRateLimited

	results, err := newTestLocator(t, gw).LocateAll(context.Background(), testImage, []string{"fan", "psu"}, 1000, 800, router)

	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.Equal(t, entities.StatusNotVisible, r.Status)
		assert.Contains(t, r.Reasoning, "Rate limit reached")
		assert.Equal(t, "Unable to locate "+r.Target, r.SpatialDescription)
	}
}

func TestLocateAllGenericRequestDetectsFirst(t *testing.T) {
	gw := newFakeGateway()
	gw.reply(PurposeDetect, `{"visible_components":["antenna","power port"," ","antenna"]}`)
	gw.reply(PurposeLocateBatch, `{"results":[
		{"target":"antenna","status":"found","confidence":0.8,"bounding_box":{"x_min":0.1,"y_min":0.1,"x_max":0.2,"y_max":0.5}},
		{"target":"power port","status":"not_visible","component_visible":false,"confidence":0.1}
	]}`)

	results, err := newTestLocator(t, gw).LocateAll(context.Background(), testImage, []string{"all major visible components"}, 1000, 800, router)

	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "antenna", results[0].Target)
	assert.Equal(t, "power port", results[1].Target)
	assert.Equal(t, []string{PurposeDetect, PurposeLocateBatch}, gw.purposes())
}

func TestLocateAllSpecificTargetsSkipDetection(t *testing.T) {
	gw := newFakeGateway()
	gw.reply(PurposeLocateSingle, `{"component_visible":false,"visibility_status":"not_visible","confidence":0}`)

	_, err := newTestLocator(t, gw).LocateAll(context.Background(), testImage, []string{"small fan"}, 1000, 800, router)

	require.NoError(t, err)
	assert.Equal(t, []string{PurposeLocateSingle}, gw.purposes())
}

func TestAssignTargets(t *testing.T) {
	tests := []struct {
		name      string
		returned  []string
		requested []string
		want      []string
	}{
		{"same index when free", []string{"", "psu"}, []string{"fan", "psu"}, []string{"fan", "psu"}},
		{"scans forward past claimed", []string{"psu", ""}, []string{"fan", "psu", "ram"}, []string{"psu", "ram"}},
		{"wraps around", []string{"ram", "psu", "unknown"}, []string{"fan", "psu", "ram"}, []string{"ram", "psu", "fan"}},
		{"nothing left", []string{"fan", ""}, []string{"fan"}, []string{"fan", "unknown"}},
		{"named entries kept", []string{"2x RAM slots"}, []string{"RAM"}, []string{"2x RAM slots"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AssignTargets(tt.returned, tt.requested))
		})
	}
}

func TestMissingTargets(t *testing.T) {
	assert.Equal(t, []string{"fan"}, MissingTargets([]string{"psu", "ram"}, []string{"fan", "psu", "ram"}))
	assert.Empty(t, MissingTargets([]string{"2x RAM slots"}, []string{"RAM"}))
}

func TestShouldAttemptLocalization(t *testing.T) {
	tests := []struct {
		name   string
		device *entities.DeviceProfile
		answer entities.AnswerType
		want   bool
	}{
		{"visible device", router, entities.AnswerLocateOnly, true},
		{"explanations may localize", router, entities.AnswerExplainOnly, true},
		{"low confidence", &entities.DeviceProfile{DeviceType: "router", Confidence: 0.2}, entities.AnswerLocateOnly, false},
		{"unknown device", &entities.DeviceProfile{DeviceType: entities.DeviceTypeUnknown, Confidence: 0.9}, entities.AnswerLocateOnly, false},
		{"not a device", &entities.DeviceProfile{DeviceType: entities.DeviceTypeNotADevice, Confidence: 0.9}, entities.AnswerLocateOnly, false},
		{"lowercase unknown", &entities.DeviceProfile{DeviceType: "unknown", Confidence: 0.9}, entities.AnswerLocateOnly, false},
		{"uppercase not a device", &entities.DeviceProfile{DeviceType: "NOT_A_DEVICE", Confidence: 0.9}, entities.AnswerLocateOnly, false},
		{"safety only", router, entities.AnswerSafetyWarningOnly, false},
		{"clarifying", router, entities.AnswerAskClarifying, false},
		{"no device", nil, entities.AnswerLocateOnly, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, reason := ShouldAttemptLocalization(tt.device, tt.answer)
			assert.Equal(t, tt.want, got)
			assert.NotEmpty(t, reason)
		})
	}
}

func TestTargetsFor(t *testing.T) {
	assert.Equal(t, []string{"fan", "psu"}, TargetsFor([]string{" fan ", "psu", "fan"}, "ignored", nil))
	assert.Equal(t, []string{"SSD", "cooling fan"}, TargetsFor(nil, "locate SSD & cooling fan", nil))
	assert.Equal(t, []string{"reset button"}, TargetsFor(nil, "how do I reset it", nil))
	assert.Equal(t, []string{"WAN light"}, TargetsFor(nil, "what does the wan light mean", []string{"WAN light"}))
	assert.Equal(t, []string{"component relevant to: it makes a noise"}, TargetsFor(nil, "it makes a noise", nil))
}
