package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/dipievil/drone-ci-ex-helper/internal/mapper"
	"github.com/dipievil/drone-ci-ex-helper/pkg/document"
)

// LocateError prints where in file the validator error described by errorJSON points
func LocateError(file string, errorJSON []byte, out io.Writer) error {
	data, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", file, err)
	}

	req, err := mapper.ParseLocateRequest(errorJSON)
	if err != nil {
		return err
	}

	loc, err := mapper.Locate(document.New(file, 1, string(data)), req)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, loc.String())
	return nil
}
