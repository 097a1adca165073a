// Command efsarchive exports a raw efs block-device file to a
// compressed archive, and restores one back, for backup/transfer of a
// volume without mounting it.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"

	"github.com/google/renameio"
)

const usage = `efsarchive - efs volume backup tool

Usage:
  efsarchive export [-codec zstd|xz] <volume.img> <archive>   Compress a volume file into an archive
  efsarchive import [-codec zstd|xz] <archive> <volume.img>   Decompress an archive back into a volume file
  efsarchive help                                             Show this help message

Examples:
  efsarchive export data.img data.img.zst
  efsarchive export -codec xz data.img data.img.xz
  efsarchive import data.img.zst data.img
`

func main() {
	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}

	switch os.Args[1] {
	case "export":
		codec, rest := parseCodec(os.Args[2:])
		if len(rest) < 2 {
			fmt.Println("Error: missing volume or archive path")
			fmt.Println(usage)
			os.Exit(1)
		}
		if err := export(rest[0], rest[1], codec); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
			os.Exit(1)
		}

	case "import":
		codec, rest := parseCodec(os.Args[2:])
		if len(rest) < 2 {
			fmt.Println("Error: missing archive or volume path")
			fmt.Println(usage)
			os.Exit(1)
		}
		if err := importArchive(rest[0], rest[1], codec); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
			os.Exit(1)
		}

	case "help":
		fmt.Println(usage)

	default:
		fmt.Printf("Error: unknown command %q\n", os.Args[1])
		fmt.Println(usage)
		os.Exit(1)
	}
}

// parseCodec extracts an optional leading "-codec <name>" pair, since
// this tool's flag surface is small enough not to warrant the standard
// flag package's subcommand juggling.
func parseCodec(args []string) (string, []string) {
	if len(args) >= 2 && args[0] == "-codec" {
		return args[1], args[2:]
	}
	return "zstd", args
}

func export(volPath, archivePath, codec string) error {
	in, err := os.Open(volPath)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp, err := renameio.TempFile("", archivePath)
	if err != nil {
		return err
	}
	defer tmp.Cleanup()

	switch codec {
	case "zstd":
		w, err := zstd.NewWriter(tmp)
		if err != nil {
			return err
		}
		if _, err := io.Copy(w, in); err != nil {
			w.Close()
			return err
		}
		if err := w.Close(); err != nil {
			return err
		}
	case "xz":
		w, err := xz.NewWriter(tmp)
		if err != nil {
			return err
		}
		if _, err := io.Copy(w, in); err != nil {
			w.Close()
			return err
		}
		if err := w.Close(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown codec %q", codec)
	}

	return tmp.CloseAtomicallyReplace()
}

func importArchive(archivePath, volPath, codec string) error {
	in, err := os.Open(archivePath)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp, err := renameio.TempFile("", volPath)
	if err != nil {
		return err
	}
	defer tmp.Cleanup()

	switch codec {
	case "zstd":
		r, err := zstd.NewReader(in)
		if err != nil {
			return err
		}
		defer r.Close()
		if _, err := io.Copy(tmp, r); err != nil {
			return err
		}
	case "xz":
		r, err := xz.NewReader(in)
		if err != nil {
			return err
		}
		if _, err := io.Copy(tmp, r); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown codec %q", codec)
	}

	return tmp.CloseAtomicallyReplace()
}
