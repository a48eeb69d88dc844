package refactor

import (
	"strings"

	"github.com/jwoudenberg/elm-pair/internal/kb"
	"github.com/jwoudenberg/elm-pair/internal/syntax"
)

// Context bundles what a recognizer needs to decide whether it matches
// and, if so, to synthesize a response: the triggering edit, the file it
// touched (post-edit rope and tree), and the whole-project knowledge
// base the analysis thread has already recomputed against the new tree.
type Context struct {
	Edit syntax.TreeEdit
	File *syntax.File
	Base *kb.Base
}

// Recognizer is one of the closed pattern recognizers listed in
// Recognizers. Matches decides whether the edit shape fits this
// recognizer's trigger; Synthesize builds the response. Synthesize is
// only called after Matches returns true, and may still decline (return
// nil) if a precondition fails — e.g. R3 declines when the bare name
// would collide with a name already visible.
type Recognizer interface {
	Name() string
	Matches(ctx Context) bool
	Synthesize(ctx Context) *Refactor
}

// Recognizers is the fixed, linearly scanned repertoire for every edit
// that is not an exposing-list edit, in the declaration order
// recognition itself is fixed by (spec §4.3): renames take precedence
// over qualifier edits, so R1 is checked first. R4 and R5 are not in
// this array: an exposing-list edit can add and remove names in the
// same change, which a single Matches predicate on net text-length
// cannot split apart, so dispatchExposingListEdit handles every
// exposing_list-kinded edit ahead of this scan instead (R7's `exposing
// (..)`-removal case included). R4 and R5 remain two of the spec's
// eight named recognizers; they're just invoked directly rather than
// through this array's Matches gate.
var Recognizers = [6]Recognizer{
	renameAtDefinition{},
	addQualifier{},
	removeQualifier{},
	changeAsAlias{},
	removeExposingAll{},
	typeStructuralEdit{},
}

// Dispatch runs ctx through the fixed recognizer order and returns the
// first match's synthesized Refactor, or a Refactor left in the
// Unrecognized state if none match. Exposing-list edits are intercepted
// first by dispatchExposingListEdit; see its doc comment.
func Dispatch(ctx Context) *Refactor {
	if result := dispatchExposingListEdit(ctx); result != nil {
		return result
	}
	for _, r := range Recognizers {
		if !r.Matches(ctx) {
			continue
		}
		return finish(r.Name(), r.Synthesize(ctx))
	}
	return &Refactor{State: Unrecognized}
}

// finish fills in a synthesized Refactor's Recognizer/State fields, or
// builds the Discarded/collision-unsafe result a nil Synthesize means:
// the recognizer matched the edit's shape but declined on a precondition,
// so dispatch does not fall through to a lower-priority recognizer.
func finish(name string, result *Refactor) *Refactor {
	if result == nil {
		return &Refactor{Recognizer: name, State: Discarded, Reason: DiscardCollisionUnsafe}
	}
	result.Recognizer = name
	if result.State == 0 {
		result.State = Recognized
	}
	return result
}

// isExposingListEdit reports whether ctx.Edit's old or new node is an
// exposing_list -- R4 and R5's trigger shape, and (when the removed text
// contains `..`) R7's.
func isExposingListEdit(ctx Context) bool {
	return ctx.Edit.OldNodeKind == "exposing_list" || ctx.Edit.NewNodeKind == "exposing_list"
}

// dispatchExposingListEdit implements spec §4.3's "exposing-list edits
// combining add and remove in one change are split into independent
// recognitions applied in order add-then-remove": rather than gate R4/R5
// on whether the edit's net text length grew or shrank (which cannot
// distinguish "added one name and removed one name" from "nothing
// changed"), it diffs the clause's name set directly and runs whichever
// of R4's synthesizeAddToExposing / R5's synthesizeRemoveFromExposing
// apply, in that order, merging their edits into one Refactor. `exposing
// (..)` removal (R7) is handled here too, since it is also an
// exposing_list-kinded edit. Returns nil when ctx.Edit is not an
// exposing-list edit at all, so Dispatch falls through to the fixed
// recognizer scan.
func dispatchExposingListEdit(ctx Context) *Refactor {
	if !isExposingListEdit(ctx) {
		return nil
	}

	oldText, newText := string(ctx.Edit.OldText), string(ctx.Edit.NewText)
	if strings.Contains(oldText, "..") && !strings.Contains(newText, "..") {
		r := removeExposingAll{}
		return finish(r.Name(), r.Synthesize(ctx))
	}

	added := diffAddedNames(oldText, newText)
	removed := diffRemovedNames(oldText, newText)
	if len(added) == 0 && len(removed) == 0 {
		return &Refactor{State: Unrecognized}
	}

	var edits []Edit
	var recognizers []string
	if len(added) > 0 {
		addEdits, ok := synthesizeAddToExposing(ctx, added)
		if !ok {
			return finish(r4Name, nil)
		}
		edits = append(edits, addEdits...)
		recognizers = append(recognizers, r4Name)
	}
	if len(removed) > 0 {
		removeEdits, ok := synthesizeRemoveFromExposing(ctx, removed)
		if !ok {
			return finish(r5Name, nil)
		}
		edits = append(edits, removeEdits...)
		recognizers = append(recognizers, r5Name)
	}
	return &Refactor{Recognizer: strings.Join(recognizers, "+"), State: Recognized, Edits: edits}
}
