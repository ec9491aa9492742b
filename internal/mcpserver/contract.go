package mcpserver

// FormatURI identifies the artifact format resource.
const FormatURI = "agora://artifact-format"

// ArtifactFormat describes the artifact JSON returned by the tools and the
// review lifecycle behind the status field.
const ArtifactFormat = `# Agora Artifact Format

Artifacts are user-authored documents that pass a review before anyone but
their owner can see them. Tools only return **Published** artifacts.

## Fields

| Field | Meaning |
|---|---|
| ` + "`id`" + ` | Stable artifact ID (UUID) |
| ` + "`title`" + `, ` + "`content`" + `, ` + "`summary`" + ` | Owner-authored text |
| ` + "`file`" + `, ` + "`file_url`" + ` | Optional attachment name and download URL |
| ` + "`created_by`" + ` | Owner user ID |
| ` + "`status`" + ` | Lifecycle status, see below |
| ` + "`created_on`" + `, ` + "`last_updated`" + ` | RFC 3339 timestamps |
| ` + "`review`" + ` | ` + "`{decision, reviewer_id, comment, requested_on, decided_on}`" + ` |
| ` + "`ratings`" + ` | One ` + "`{user_id, score}`" + ` entry per rater, score 1-5 |
| ` + "`rating`" + ` | ` + "`{count, mean}`" + `; mean is null when unrated |

## Lifecycle

` + "```" + `
Draft ──request review──▶ ReviewRequested ──approve──▶ Approved ──publish──▶ Published
                              ▲        │
                              │     reject
                              │        ▼
                              └─resubmit── Rejected
` + "```" + `

1. Only the owner edits, submits and publishes an artifact.
2. Only reviewers decide on a submission.
3. Nothing reaches **Published** without an approval.
4. Only published artifacts can be rated, and never by their owner. A second
   rating by the same user replaces the first.
`
