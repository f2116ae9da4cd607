package recipebox

import (
	"fmt"
)

// AssetPlan is the outcome of diffing a record's stored asset references
// against the declared new state. It is computed before any side effect:
// Uploads lists the batch files that must be written to the blob store,
// Orphans lists the stored references the mutation abandons. Once the
// uploads have run, Resolve binds the resulting references into the final
// title/stage values.
type AssetPlan struct {
	// Uploads are the batch files consumed by the mutation, in slot order:
	// the title slot first, then stages in declared order.
	Uploads []UploadFile

	// Orphans are stored references no longer pointed to by the record once
	// the mutation commits: cleared slots, replaced slots and deleted stages.
	Orphans []string

	titleRef *string
	titleKey string
	stages   []plannedStage
}

type plannedStage struct {
	stage     Stage
	uploadKey string
}

// BuildAssetPlan diffs the stored asset state of a record against a declared
// mutation and its upload batch. It is pure: no I/O, no side effects.
//
// Stages are matched by stage number. A nil stagePatches slice keeps the
// stored stages verbatim; a non-nil slice is the complete declared list, and
// stored stages absent from it are treated as deleted.
//
// Every batch entry must be consumed by exactly one slot and every slot that
// declares an upload must name an existing, unconsumed entry; any mismatch
// fails with ErrAssetCountMismatch before a single byte is uploaded.
func BuildAssetPlan(oldTitleRef *string, oldStages []Stage, titlePatch AssetPatch, stagePatches []StagePatch, batch UploadBatch) (*AssetPlan, error) {
	files := make(map[string]UploadFile, len(batch))
	for _, f := range batch {
		if f.Key == "" {
			return nil, fmt.Errorf("%w: upload file without a key", ErrAssetCountMismatch)
		}
		if _, dup := files[f.Key]; dup {
			return nil, fmt.Errorf("%w: duplicate upload key %q", ErrAssetCountMismatch, f.Key)
		}
		files[f.Key] = f
	}

	p := &AssetPlan{}
	consumed := make(map[string]bool, len(files))

	titleRef, titleKey, err := p.resolveSlot(oldTitleRef, titlePatch, files, consumed)
	if err != nil {
		return nil, err
	}
	p.titleRef = titleRef
	p.titleKey = titleKey

	if stagePatches == nil {
		for _, st := range oldStages {
			p.stages = append(p.stages, plannedStage{stage: st})
		}
	} else {
		oldByNumber := make(map[int]Stage, len(oldStages))
		for _, st := range oldStages {
			oldByNumber[st.StageNumber] = st
		}

		keptNumbers := make(map[int]bool, len(stagePatches))
		for _, sp := range stagePatches {
			if keptNumbers[sp.StageNumber] {
				return nil, fmt.Errorf("%w: %d", ErrDuplicateStageNumber, sp.StageNumber)
			}
			keptNumbers[sp.StageNumber] = true

			var oldRef *string
			if old, ok := oldByNumber[sp.StageNumber]; ok {
				oldRef = old.AssetRef
			}
			ref, key, err := p.resolveSlot(oldRef, sp.Image, files, consumed)
			if err != nil {
				return nil, err
			}
			p.stages = append(p.stages, plannedStage{
				stage:     Stage{StageNumber: sp.StageNumber, AssetRef: ref, Description: sp.Description},
				uploadKey: key,
			})
		}

		// Stored stages missing from the declared list are deleted; their
		// references are orphaned.
		for _, st := range oldStages {
			if !keptNumbers[st.StageNumber] && st.AssetRef != nil {
				p.Orphans = append(p.Orphans, *st.AssetRef)
			}
		}
	}

	if len(consumed) != len(files) {
		return nil, fmt.Errorf("%w: %d files submitted, %d slots expect an upload",
			ErrAssetCountMismatch, len(files), len(consumed))
	}

	return p, nil
}

// resolveSlot applies one AssetPatch to one slot, recording orphans and
// pending uploads on the plan.
func (p *AssetPlan) resolveSlot(oldRef *string, patch AssetPatch, files map[string]UploadFile, consumed map[string]bool) (*string, string, error) {
	switch patch.Op {
	case AssetOpKeep, "":
		return oldRef, "", nil

	case AssetOpClear:
		if oldRef != nil {
			p.Orphans = append(p.Orphans, *oldRef)
		}
		return nil, "", nil

	case AssetOpUpload:
		file, ok := files[patch.UploadKey]
		if !ok {
			return nil, "", fmt.Errorf("%w: no upload file for key %q", ErrAssetCountMismatch, patch.UploadKey)
		}
		if consumed[patch.UploadKey] {
			return nil, "", fmt.Errorf("%w: upload key %q consumed by two slots", ErrAssetCountMismatch, patch.UploadKey)
		}
		consumed[patch.UploadKey] = true
		p.Uploads = append(p.Uploads, file)
		if oldRef != nil {
			// Replaced reference: the old asset is orphaned once the new
			// one is committed.
			p.Orphans = append(p.Orphans, *oldRef)
		}
		return nil, patch.UploadKey, nil

	default:
		return nil, "", fmt.Errorf("%w: unknown asset op %q", ErrAssetCountMismatch, patch.Op)
	}
}

// HasUploads reports whether the plan requires any blob store writes.
func (p *AssetPlan) HasUploads() bool { return len(p.Uploads) > 0 }

// Resolve binds uploaded references (keyed by upload key) into the final
// title reference and stage list. It fails if a slot's key is missing from
// refs, which indicates a caller bug rather than a client mistake.
func (p *AssetPlan) Resolve(refs map[string]string) (*string, []Stage, error) {
	titleRef := p.titleRef
	if p.titleKey != "" {
		ref, ok := refs[p.titleKey]
		if !ok {
			return nil, nil, fmt.Errorf("no uploaded reference for key %q", p.titleKey)
		}
		titleRef = &ref
	}

	stages := make([]Stage, 0, len(p.stages))
	for _, ps := range p.stages {
		st := ps.stage
		if ps.uploadKey != "" {
			ref, ok := refs[ps.uploadKey]
			if !ok {
				return nil, nil, fmt.Errorf("no uploaded reference for key %q", ps.uploadKey)
			}
			st.AssetRef = &ref
		}
		stages = append(stages, st)
	}

	return titleRef, stages, nil
}
