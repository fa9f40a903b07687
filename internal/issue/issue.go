// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/slices"
)

type Id int

const (
	ConfigLoadFailedId Id = iota + 1
	InvalidSourceId
	ArtifactMissingId
	VersionMissingId
	BranchNotFoundId
	CommandFailedId
	ArtifactDownloadFailedId
	DeployedRefMissingId
	CredentialsMissingId
)

type MarkdownMsg string

type Issue struct {
	id    Id          // ID used to lookup the issue
	mdMsg MarkdownMsg // Markdown text that will be rendered
}

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) Render(stylePath string) (string, error) {
	return render(string(i.mdMsg), stylePath)
}

var (
	render = glamour.Render

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load configuration!

tankerci reads ` + "`tankerci.cue`" + ` from the current directory, or
` + "`config.cue`" + ` from its configuration directory.

## Things you can try:
- Check the CUE syntax of the file
- Print the effective configuration:
~~~
$ tankerci config show
~~~`,
	}

	invalidSourceIssue = &Issue{
		id: InvalidSourceId,
		mdMsg: `
# Unknown native dependency source!

The ` + "`--use-tanker`" + ` flag selects where libctanker comes from.

## Accepted values:
- ` + "`local`" + `: export ../sdk-native and build it from source
- ` + "`same-as-branch`" + `: like local, on the branch matching this one
- ` + "`upstream`" + `: reuse the package built by an upstream job
- ` + "`deployed`" + `: use a published reference
- ` + "`editable`" + `: use a package already linked in editable mode`,
	}

	artifactMissingIssue = &Issue{
		id: ArtifactMissingId,
		mdMsg: `
# A release artifact is missing!

Every supported platform must have its native library in the vendor
directory before a version is bumped or published. Nothing was modified.

## Things you can try:
- Download the native builds produced by the pipeline:
~~~
$ tankerci download-artifacts --project-id ID --pipeline-id ID --job-name NAME
~~~
- Check the ` + "`expected_artifacts`" + ` list in the configuration`,
	}

	versionMissingIssue = &Issue{
		id: VersionMissingId,
		mdMsg: `
# No release version!

The version comes from ` + "`--version`" + ` or from the CI_COMMIT_TAG
environment variable, and must be a semantic version (a leading ` + "`v`" + ` is accepted).`,
	}

	branchNotFoundIssue = &Issue{
		id: BranchNotFoundId,
		mdMsg: `
# Branch not found!

Neither the requested branch nor the fallback exist on the ` + "`origin`" + ` remote.

## Things you can try:
- Fetch the remote first:
~~~
$ git fetch origin
~~~`,
	}

	commandFailedIssue = &Issue{
		id: CommandFailedId,
		mdMsg: `
# An external command failed!

The pipeline stops at the first failing stage; no later stage ran.
Run with ` + "`--verbose`" + ` to see every command line.`,
	}

	artifactDownloadFailedIssue = &Issue{
		id: ArtifactDownloadFailedId,
		mdMsg: `
# Could not download job artifacts!

## Things you can try:
- Export GITLAB_TOKEN, or run inside a job where CI_JOB_TOKEN is set
- Check the project id, pipeline id and job name`,
	}

	deployedRefMissingIssue = &Issue{
		id: DeployedRefMissingId,
		mdMsg: `
# No deployed reference!

This configuration requires the deployed reference to come from the
environment. Set the variable named by ` + "`deployed.env_var`" + ` or pass ` + "`--tanker-ref`" + `.`,
	}

	credentialsMissingIssue = &Issue{
		id: CredentialsMissingId,
		mdMsg: `
# Publishing credentials are missing!

Set the API key variable named by ` + "`credentials.env_var`" + ` (GEM_HOST_API_KEY by default).`,
	}

	issues = map[Id]*Issue{
		configLoadFailedIssue.Id():       configLoadFailedIssue,
		invalidSourceIssue.Id():          invalidSourceIssue,
		artifactMissingIssue.Id():        artifactMissingIssue,
		versionMissingIssue.Id():         versionMissingIssue,
		branchNotFoundIssue.Id():         branchNotFoundIssue,
		commandFailedIssue.Id():          commandFailedIssue,
		artifactDownloadFailedIssue.Id(): artifactDownloadFailedIssue,
		deployedRefMissingIssue.Id():     deployedRefMissingIssue,
		credentialsMissingIssue.Id():     credentialsMissingIssue,
	}
)

// Values returns every catalog entry ordered by id.
func Values() []*Issue {
	values := make([]*Issue, 0, len(issues))
	for _, i := range issues {
		values = append(values, i)
	}
	slices.SortFunc(values, func(a, b *Issue) int { return int(a.id) - int(b.id) })
	return values
}

func Get(id Id) *Issue {
	return issues[id]
}
