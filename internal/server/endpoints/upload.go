package endpoints

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/mediview/internal/api"
	"github.com/jackzampolin/mediview/internal/dashboard"
	"github.com/jackzampolin/mediview/internal/document"
	"github.com/jackzampolin/mediview/internal/ocrapi"
)

// UploadEndpoint handles POST /api/upload with a multipart file upload.
type UploadEndpoint struct {
	// MaxUploadBytes is the configured document limit. Zero uses
	// document.DefaultMaxSize.
	MaxUploadBytes int64
}

var _ api.Endpoint = (*UploadEndpoint)(nil)

func (e *UploadEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/upload", e.handler
}

func (e *UploadEndpoint) RequiresInit() bool { return true }

// handler selects the posted file and language, then submits it. It waits
// for the OCR result unless the form sets async, in which case the service
// only queues the job. Validation and service failures come back in the
// panel's error with status 200; only malformed requests get 4xx.
func (e *UploadEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	up, err := readUpload(w, r, e.MaxUploadBytes)
	if err != nil {
		writeError(w, uploadErrorStatus(err), err.Error())
		return
	}

	var lang ocrapi.Language
	if up.lang != "" {
		if lang, err = ocrapi.ParseLanguage(up.lang); err != nil {
			writeError(w, http.StatusBadRequest, ocrapi.UserMessage(err, err.Error()))
			return
		}
	}

	c := coordinatorFrom(w, r)
	if c == nil {
		return
	}
	c.SelectFile(up.filename, up.data)
	if lang != "" {
		c.SetLanguage(lang)
	}
	if up.async {
		c.SubmitUploadAsync(transitionContext(r))
	} else {
		c.SubmitUpload(transitionContext(r))
	}
	writeJSON(w, http.StatusOK, screen(c).Upload)
}

func (e *UploadEndpoint) Command(getServerURL func() string) *cobra.Command {
	var (
		lang  string
		async bool
	)
	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload a document and wait for its OCR result",
		Long: `Upload a PDF, PNG or JPEG through the dashboard and print the result.

Sensitive items are printed as their masked text. With --async the service
only queues the job and the job id is printed; use "open <job-id>" once it
is done.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}
			fields := map[string]string{}
			if lang != "" {
				fields["lang"] = lang
			}
			if async {
				fields["async"] = "true"
			}

			client := api.NewClient(getServerURL())
			var resp dashboard.UploadPanel
			if err := client.PostFile(cmd.Context(), "/api/upload", "file", args[0], data, fields, &resp); err != nil {
				return err
			}
			if err := api.Output(resp); err != nil {
				return err
			}
			if resp.Phase == dashboard.UploadFailed && resp.Error != nil {
				return errors.New(resp.Error.Message)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&lang, "lang", "", "OCR language (en, ko); defaults to the dashboard's selection")
	cmd.Flags().BoolVar(&async, "async", false, "queue the job instead of waiting for its result")
	return cmd
}

// postedUpload is the file and options read from a multipart form. An
// absent file leaves filename empty and data nil.
type postedUpload struct {
	filename string
	data     []byte
	lang     string
	async    bool
}

var errRequestTooLarge = errors.New("request too large")

// readUpload parses a multipart upload. The body limit is twice the
// document limit so that slightly oversized files still reach the upload
// panel's size check and get its message.
func readUpload(w http.ResponseWriter, r *http.Request, maxUpload int64) (postedUpload, error) {
	if maxUpload <= 0 {
		maxUpload = document.DefaultMaxSize
	}
	r.Body = http.MaxBytesReader(w, r.Body, 2*maxUpload+1<<20)

	const maxMemory = 32 << 20
	if err := r.ParseMultipartForm(maxMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return postedUpload{}, errRequestTooLarge
		}
		return postedUpload{}, fmt.Errorf("failed to parse form: %w", err)
	}
	defer r.MultipartForm.RemoveAll()

	up := postedUpload{lang: r.FormValue("lang")}
	up.async, _ = strconv.ParseBool(r.FormValue("async"))

	file, header, err := r.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		return up, nil
	}
	if err != nil {
		return postedUpload{}, fmt.Errorf("failed to read file: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return postedUpload{}, fmt.Errorf("failed to read file: %w", err)
	}
	up.filename = header.Filename
	up.data = data
	return up, nil
}

func uploadErrorStatus(err error) int {
	if errors.Is(err, errRequestTooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadRequest
}
