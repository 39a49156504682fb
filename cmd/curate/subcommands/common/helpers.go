package common

import (
	"context"
	"fmt"
	"io"

	jsoniter "github.com/json-iterator/go"
	kenv "github.com/superb-ai/spb-curate-go/cmd/curate/env"
	"github.com/superb-ai/spb-curate-go/pkg/curate"
	"github.com/youta-t/flarc"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// PrintJSON writes v into w as indented JSON.
func PrintJSON(w io.Writer, v any) error {
	enc := jsonAPI.NewEncoder(w)
	enc.SetIndent("", "    ")
	return enc.Encode(v)
}

// DatasetOf finds the dataset named by the flag, or by curateenv when the flag is empty.
func DatasetOf(
	ctx context.Context, client *curate.Client, name string, options ...curate.FetchOption,
) (*curate.Dataset, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: dataset is not given. Use --dataset, or write it into curateenv", flarc.ErrUsage)
	}
	return client.FetchDatasetByName(ctx, name, options...)
}

// BulkOptions makes options of a bulk operation. With wait, the job is waited
// up to the timeout of curateenv, or the default timeout.
func BulkOptions(curateEnv kenv.CurateEnv, wait bool) []curate.BulkOption {
	if !wait {
		return []curate.BulkOption{}
	}
	options := []curate.BulkOption{curate.Asynchronous(false)}
	if curateEnv.Timeout != 0 {
		options = append(options, curate.WithWaitOptions(curate.WithWaitTimeout(curateEnv.Timeout)))
	}
	return options
}
