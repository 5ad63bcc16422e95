package support

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/cucumber/godog"
)

// RegisterPipelineSteps wires the image upload and result inspection steps.
func (testCtx *TestContext) RegisterPipelineSteps(sc *godog.ScenarioContext) {
	sc.Step(`^I upload a test image with stages "([^"]*)"$`, testCtx.iUploadATestImageWithStages)
	sc.Step(`^I upload a test image with no stages$`, testCtx.iUploadATestImageWithNoStages)
	sc.Step(`^I upload a test image with default flags$`, testCtx.iUploadATestImageWithDefaultFlags)
	sc.Step(`^I upload a test image for evaluation with degradation "([^"]*)"$`,
		testCtx.iUploadATestImageForEvaluation)
	sc.Step(`^I upload a test image to the denoise endpoint$`, testCtx.iUploadATestImageToDenoise)
	sc.Step(`^I fetch the stored output image$`, testCtx.iFetchTheStoredOutputImage)
	sc.Step(`^the response should indicate success$`, testCtx.theResponseShouldIndicateSuccess)
	sc.Step(`^the response should indicate failure$`, testCtx.theResponseShouldIndicateFailure)
	sc.Step(`^the images should include "([^"]*)"$`, testCtx.theImagesShouldInclude)
	sc.Step(`^the images should not include "([^"]*)"$`, testCtx.theImagesShouldNotInclude)
	sc.Step(`^the metrics should include "([^"]*)"$`, testCtx.theMetricsShouldInclude)
	sc.Step(`^the error should mention "([^"]*)"$`, testCtx.theErrorShouldMention)
	sc.Step(`^the response should be a PNG image$`, testCtx.theResponseShouldBeAPNGImage)
}

// uploadPipeline posts a multipart form with a gradient test image plus the
// given form fields.
func (testCtx *TestContext) uploadPipeline(endpoint string, fields map[string]string) error {
	imgData, err := testImagePNG()
	if err != nil {
		return err
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("image", "test.png")
	if err != nil {
		return fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(imgData); err != nil {
		return fmt.Errorf("failed to write image data: %w", err)
	}
	for k, v := range fields {
		if err := writer.WriteField(k, v); err != nil {
			return fmt.Errorf("failed to write field %s: %w", k, err)
		}
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close multipart writer: %w", err)
	}

	return testCtx.doRequest(http.MethodPost, endpoint, writer.FormDataContentType(), body)
}

// disabledStageFields returns a field set with every stage toggle off.
// Absent toggles default to on server-side, so stage selection steps must
// disable explicitly.
func disabledStageFields() map[string]string {
	return map[string]string{
		"enable_preprocess": "false",
		"enable_deblur":     "false",
		"enable_edsr":       "false",
	}
}

func (testCtx *TestContext) iUploadATestImageWithStages(stages string) error {
	fields := disabledStageFields()
	for _, stage := range strings.Split(stages, ",") {
		stage = strings.TrimSpace(stage)
		switch stage {
		case "":
		case "evaluation":
			fields["evaluation_mode"] = "true"
		default:
			fields["enable_"+stage] = "true"
		}
	}
	return testCtx.uploadPipeline("/api/pipeline", fields)
}

func (testCtx *TestContext) iUploadATestImageWithNoStages() error {
	return testCtx.uploadPipeline("/api/pipeline", disabledStageFields())
}

func (testCtx *TestContext) iUploadATestImageWithDefaultFlags() error {
	return testCtx.uploadPipeline("/api/pipeline", nil)
}

func (testCtx *TestContext) iUploadATestImageForEvaluation(degradation string) error {
	fields := disabledStageFields()
	fields["enable_edsr"] = "true"
	fields["evaluation_mode"] = "true"
	fields["degradation_type"] = degradation
	return testCtx.uploadPipeline("/api/pipeline", fields)
}

func (testCtx *TestContext) iUploadATestImageToDenoise() error {
	return testCtx.uploadPipeline("/api/denoise", nil)
}

// iFetchTheStoredOutputImage follows the output artifact URL of the last
// denoise response.
func (testCtx *TestContext) iFetchTheStoredOutputImage() error {
	if testCtx.LastJSON == nil {
		return fmt.Errorf("last response was not a JSON object")
	}
	output, ok := testCtx.LastJSON["output"].(map[string]interface{})
	if !ok {
		return fmt.Errorf("response has no output artifact")
	}
	outputURL, ok := output["url"].(string)
	if !ok || outputURL == "" {
		return fmt.Errorf("output artifact has no url")
	}
	return testCtx.doRequest(http.MethodGet, outputURL, "", nil)
}

func (testCtx *TestContext) theResponseShouldIndicateSuccess() error {
	return testCtx.theJSONFieldShouldBe("success", "true")
}

func (testCtx *TestContext) theResponseShouldIndicateFailure() error {
	return testCtx.theJSONFieldShouldBe("success", "false")
}

// responseImage looks up a top-level stage image key such as "preprocessed",
// "degraded" or "edsr" in the last JSON response.
func (testCtx *TestContext) responseImage(name string) (string, bool) {
	if testCtx.LastJSON == nil {
		return "", false
	}
	url, ok := testCtx.LastJSON[name].(string)
	return url, ok
}

func (testCtx *TestContext) theImagesShouldInclude(names string) error {
	for _, name := range strings.Split(names, ",") {
		name = strings.TrimSpace(name)
		url, ok := testCtx.responseImage(name)
		if !ok {
			return fmt.Errorf("image %q missing from response", name)
		}
		if !strings.HasPrefix(url, "data:image/png;base64,") {
			return fmt.Errorf("image %q is not a PNG data URL", name)
		}
	}
	return nil
}

func (testCtx *TestContext) theImagesShouldNotInclude(name string) error {
	if _, ok := testCtx.responseImage(name); ok {
		return fmt.Errorf("image %q unexpectedly present", name)
	}
	return nil
}

func (testCtx *TestContext) theMetricsShouldInclude(names string) error {
	if testCtx.LastJSON == nil {
		return fmt.Errorf("last response was not a JSON object")
	}
	metrics, ok := testCtx.LastJSON["metrics"].(map[string]interface{})
	if !ok {
		return fmt.Errorf("response has no metrics map")
	}
	for _, name := range strings.Split(names, ",") {
		name = strings.TrimSpace(name)
		record, ok := metrics[name].(map[string]interface{})
		if !ok {
			return fmt.Errorf("metrics for %q missing", name)
		}
		for _, key := range []string{"psnr", "ssim", "mse", "mae"} {
			if _, ok := record[key]; !ok {
				return fmt.Errorf("metrics for %q missing %s", name, key)
			}
		}
	}
	return nil
}

func (testCtx *TestContext) theErrorShouldMention(text string) error {
	if testCtx.LastJSON == nil {
		return fmt.Errorf("last response was not a JSON object")
	}
	msg, _ := testCtx.LastJSON["error"].(string)
	if !strings.Contains(msg, text) {
		return fmt.Errorf("error %q does not mention %q", msg, text)
	}
	return nil
}

func (testCtx *TestContext) theResponseShouldBeAPNGImage() error {
	pngMagic := []byte{0x89, 'P', 'N', 'G'}
	if len(testCtx.LastBody) < len(pngMagic) || !bytes.Equal(testCtx.LastBody[:4], pngMagic) {
		return fmt.Errorf("response body is not a PNG image")
	}
	return nil
}
