// SPDX-License-Identifier: MPL-2.0

package source

type (
	// Source is the provenance of the native dependency for one run.
	// The set of implementations is closed.
	Source interface {
		Mode() Mode
		sealed()
	}

	// Local exports the native recipe found in SourceDir.
	// An empty SourceDir uses the configured sibling checkout.
	Local struct {
		SourceDir string
	}

	// SameAsBranch checks out the native and binding repositories on Branch
	// (or Fallback) and then behaves like Local inside that workspace.
	SameAsBranch struct {
		Branch   string
		Fallback string
	}

	// Upstream registers prebuilt packages staged by an upstream job.
	// Empty fields use the configured defaults.
	Upstream struct {
		RecipeDir   string
		PackagesDir string
	}

	// Deployed installs a published reference. An empty Ref is looked up
	// from the environment or configuration.
	Deployed struct {
		Ref string
	}

	// Editable assumes the dependency is already linked in editable mode.
	Editable struct{}

	// Options carries the CLI inputs that parameterize a Source.
	Options struct {
		// Ref is the explicit --tanker-ref.
		Ref string
		// Branch is the branch SameAsBranch checks out.
		Branch string
	}
)

// Mode implements Source.
func (Local) Mode() Mode { return ModeLocal }

// Mode implements Source.
func (SameAsBranch) Mode() Mode { return ModeSameAsBranch }

// Mode implements Source.
func (Upstream) Mode() Mode { return ModeUpstream }

// Mode implements Source.
func (Deployed) Mode() Mode { return ModeDeployed }

// Mode implements Source.
func (Editable) Mode() Mode { return ModeEditable }

func (Local) sealed()        {}
func (SameAsBranch) sealed() {}
func (Upstream) sealed()     {}
func (Deployed) sealed()     {}
func (Editable) sealed()     {}

// New builds the Source variant for mode.
func New(mode Mode, opts Options) (Source, error) {
	if err := mode.Validate(); err != nil {
		return nil, err
	}
	switch mode {
	case ModeLocal:
		return Local{}, nil
	case ModeSameAsBranch:
		return SameAsBranch{Branch: opts.Branch}, nil
	case ModeUpstream:
		return Upstream{}, nil
	case ModeDeployed:
		return Deployed{Ref: opts.Ref}, nil
	default:
		return Editable{}, nil
	}
}
