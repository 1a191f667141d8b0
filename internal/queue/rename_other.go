//go:build !linux

package queue

func renameNoReplace(oldpath, newpath string) error {
	return renameCheckExisting(oldpath, newpath)
}
