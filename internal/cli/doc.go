// Package cli implements the nuictl commands.
//
// 	nuictl push [dir]                      upload a folder (create or reuse a workspace)
// 	nuictl export [ws] [-o file] [--format zip|tar.gz|tar.zst] [--version n]
// 	nuictl send <ws> <json>                post a window message to the UI
// 	nuictl invoke <ws> <name> [json]       call a registered UI callback
// 	nuictl logs [ws] [-f]                  print or follow the console log
// 	nuictl snapshot [ws] [--list]          save or list versions
// 	nuictl status                          server health and workspaces
//
// "." or an omitted workspace selects the default from --workspace or the
// project file. A project file looks like:
//
// 	# .nuictl.yaml
// 	server: http://127.0.0.1:8000
// 	workspace: ws_01J...
// 	dir: ui
// 	ignore: ["**/node_modules/**", "**/*.map"]
// 	format: tar.zst
package cli
