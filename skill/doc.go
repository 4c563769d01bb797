// Package skill discovers capability documents and exposes them as a catalog
// to the reasoner. A skill is a directory containing a SKILL.md whose YAML
// frontmatter names and describes it; the catalog lists name, description and
// location only, and the full document is fetched lazily on resolve.
package skill
