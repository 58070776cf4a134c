// Package replace rewrites files in streaming fashion with bounded memory:
// single-point patches, byte-level global find/replace, and encoding-aware
// line-based replace.
package replace

import (
	"fmt"
	"io"
	"os"

	lerrors "github.com/standardbeagle/ltv/internal/errors"
)

// ReplaceSingle patches one span of the file: oldLen bytes at offset become
// newText. Equal-length patches are written in place; anything else streams
// the file to a sibling temp file and atomically renames it back.
func ReplaceSingle(path string, offset int64, oldLen int, newText string) error {
	newBytes := []byte(newText)

	if len(newBytes) == oldLen {
		f, err := os.OpenFile(path, os.O_WRONLY, 0)
		if err != nil {
			return lerrors.NewReplaceError("open", path, err)
		}
		defer f.Close()
		if _, err := f.WriteAt(newBytes, offset); err != nil {
			return lerrors.NewReplaceError("write", path, err)
		}
		return nil
	}

	tempPath := path + ".tmp"
	if err := rewriteWithPatch(path, tempPath, offset, oldLen, newBytes); err != nil {
		os.Remove(tempPath)
		return err
	}

	if err := renameWithFallback(tempPath, path); err != nil {
		os.Remove(tempPath)
		return err
	}
	return nil
}

// rewriteWithPatch streams path to tempPath, substituting newBytes for the
// oldLen bytes at offset.
func rewriteWithPatch(path, tempPath string, offset int64, oldLen int, newBytes []byte) error {
	in, err := os.Open(path)
	if err != nil {
		return lerrors.NewReplaceError("open", path, err)
	}
	defer in.Close()

	out, err := os.Create(tempPath)
	if err != nil {
		return lerrors.NewReplaceError("create", tempPath, err)
	}

	err = func() error {
		// Prefix before the patch.
		if _, err := io.CopyN(out, in, offset); err != nil && err != io.EOF {
			return err
		}

		if _, err := out.Write(newBytes); err != nil {
			return err
		}

		// Skip the replaced span in the source, copy the rest.
		if _, err := in.Seek(int64(oldLen), io.SeekCurrent); err != nil {
			return err
		}
		_, err := io.Copy(out, in)
		return err
	}()

	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return lerrors.NewReplaceError("rewrite", path, err)
	}
	return nil
}

// renameWithFallback renames temp over target. Hosts that lock open files
// refuse the rename; retry after removing the target, and report the file
// as busy when that fails too.
func renameWithFallback(temp, target string) error {
	if err := os.Rename(temp, target); err == nil {
		return nil
	}
	if err := os.Remove(target); err == nil {
		if err := os.Rename(temp, target); err == nil {
			return nil
		}
	}
	return lerrors.NewReplaceError("rename", target, lerrors.ErrFileBusy)
}

// SwapWithBackup atomically replaces path with the finished output at
// tmpPath: the original is renamed to <path>.bak, the output takes its
// place, and the backup is removed. A failed swap restores the backup.
func SwapWithBackup(path, tmpPath string) error {
	backupPath := path + ".bak"

	if err := os.Rename(path, backupPath); err != nil {
		return lerrors.NewReplaceError("backup", path, err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		// Put the original back before reporting.
		if rerr := os.Rename(backupPath, path); rerr != nil {
			return lerrors.NewReplaceError("swap", path,
				fmt.Errorf("swap failed (%v) and backup restore failed: %w", err, rerr))
		}
		return lerrors.NewReplaceError("swap", path, err)
	}

	os.Remove(backupPath)
	return nil
}
