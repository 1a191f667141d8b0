// Package queue implements the filesystem task store shared with the front
// end.
//
// A task descriptor is a file named <id><ext> in the urls directory whose body
// is the target URL. The extension is the task's only state: .txt (pending),
// .downloading (in progress), .ok (succeeded), .fail (failed). Transitions are
// single renames that refuse to overwrite an existing descriptor, so two
// claimants racing on the same id cannot both win and a task never has more
// than one live extension.
package queue
