// Package router decides where an analysed image goes and writes it there.
package router

import (
	"fmt"
	"path/filepath"

	"github.com/andresmejia3/facesort/internal/types"
)

// OutputExt is appended to caption-derived filenames.
const OutputExt = ".jpg"

// Decide applies the routing table:
//
//	faces  caption  destination  filename              action
//	>=1    yes      PEOPLE       {seq}-{caption}.jpg   annotate
//	>=1    no       PEOPLE       original name         annotate
//	0      yes      NOT PEOPLE   {seq}-{caption}.jpg   copy
//	0      no       none         -                     -
//
// When raw is false the caption is passed through SanitizeCaption first.
func Decide(task types.ImageTask, res types.AnalysisResult, raw bool) types.RoutingDecision {
	captioned := func() string {
		caption := res.Caption
		if !raw {
			caption = SanitizeCaption(caption)
		}
		return fmt.Sprintf("%d-%s%s", task.Sequence, caption, OutputExt)
	}

	switch {
	case len(res.Faces) > 0 && res.HasCaption:
		return types.RoutingDecision{Destination: types.DestinationPeople, Filename: captioned(), Annotate: true}
	case len(res.Faces) > 0:
		return types.RoutingDecision{Destination: types.DestinationPeople, Filename: filepath.Base(task.SourcePath), Annotate: true}
	case res.HasCaption:
		return types.RoutingDecision{Destination: types.DestinationNotPeople, Filename: captioned()}
	default:
		return types.RoutingDecision{Destination: types.DestinationNone}
	}
}
