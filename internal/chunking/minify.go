package chunking

import (
	"strings"

	"github.com/evanw/esbuild/pkg/api"

	"github.com/conduit-lang/pack/internal/issue"
)

func minify(src, path string) (string, error) {
	result := api.Transform(src, api.TransformOptions{
		Loader:           api.LoaderJS,
		Format:           api.FormatDefault,
		Target:           api.ES2020,
		MinifyWhitespace: true,
		MinifySyntax:     true,
		Sourcefile:       path,
		LegalComments:    api.LegalCommentsNone,
	})
	if len(result.Errors) > 0 {
		msgs := api.FormatMessages(result.Errors, api.FormatMessagesOptions{Kind: api.ErrorMessage})
		return "", issue.Issue{
			Severity: issue.SeverityError,
			Category: issue.CategoryMinify,
			Context:  path,
			Title:    "minification failed",
			Detail:   strings.Join(msgs, "\n"),
		}
	}
	return string(result.Code), nil
}
