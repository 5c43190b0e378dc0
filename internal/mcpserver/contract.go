package mcpserver

// FormatGuide describes which files the viewer lists and how each one is
// turned into a tree, so LLM clients can interpret read_file_tree output.
const FormatGuide = `# File viewer formats

Projects are registered folders. Listings include sub-folders and files with
these extensions only: .md, .json, .yml, .yaml, .mmd. Hidden folders and
dependency caches (node_modules, __pycache__, venv, build, dist, target) are
never listed.

## Trees

Every node has a ` + "`label`" + ` and ` + "`children`" + `.

- **Markdown**: one node per ATX heading (` + "`#`" + ` to ` + "`######`" + `). A heading
  is a child of the nearest earlier heading with a lower level. ` + "`level`" + `
  holds the heading depth and ` + "`type`" + ` is h1 to h6.
- **JSON / YAML**: one node per object key or list item, in document order.
  Keys are labelled by name and list items as ` + "`[i]`" + `. A top-level list is
  wrapped in a ` + "`Root Array`" + ` node. ` + "`type`" + ` is object, array[n], string,
  number, boolean or null.
- **Mermaid** (.mmd): no tree, content only.

A file that cannot be parsed yields a single node labelled
` + "`<FORMAT> Parse Error: <message>`" + ` and the ` + "`error`" + ` field is set.
`
