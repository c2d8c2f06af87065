package mcpserver

// ModelContract describes how org files are exposed through the tools so
// that LLM consumers can address documents and headlines correctly.
const ModelContract = `# orgsync Document Model

Every monitored ` + "`" + `.org` + "`" + ` file is parsed into a document holding a tree of headlines.

## Identifiers

- **Document id** is derived from the absolute file path. It is stable across
  restarts and across edits of the same file. Tools accept either the id or the path.
- **Headline id** is a dotted path of 1-based positions: ` + "`" + `1` + "`" + ` is the first
  top-level headline, ` + "`" + `1.2` + "`" + ` its second child. Ids are only unique within their
  document, so always pair them with a document id.
- Ids shift when headlines are inserted or removed above them. Re-read the
  document after an update instead of caching ids.

## Headline fields

- ` + "`" + `title.raw` + "`" + ` is the headline text with keyword, priority and tags removed.
- ` + "`" + `title.todo_keyword` + "`" + ` is the TODO keyword, if any. Its status (active or closed)
  depends on the ` + "`" + `#+TODO:` + "`" + ` lines of the document, falling back to the server default.
- ` + "`" + `title.tags` + "`" + ` are the tags declared on the headline itself. Inherited tags are not
  repeated; file tags are reported on the document.
- ` + "`" + `category` + "`" + ` is the effective category: the headline's own ` + "`" + `:CATEGORY:` + "`" + `
  property, else the document's ` + "`" + `#+CATEGORY:` + "`" + `. It is empty when neither is set.
- ` + "`" + `etag` + "`" + ` is a fingerprint of the subtree. It changes when anything inside the
  headline or its children changes.

## Change feed

Every reparse that changes a document records which headline ids are new,
updated or deleted. A headline counts as updated when its own text changed or
when any descendant changed.
`
