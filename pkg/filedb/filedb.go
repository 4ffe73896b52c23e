// Package filedb is a simple append-only journal based on files.
package filedb

import (
	"bufio"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/nxadm/tail"
)

type Filedb struct {
	File     *os.File
	FilePath string

	// ToMySQLHandler receives batches of journal lines and persists them
	ToMySQLHandler func([]string) error
}

func New(filePath string) (fdb *Filedb, err error) {
	fdb = &Filedb{
		FilePath: filePath,
	}
	err = fdb.Open()

	return
}

func (f *Filedb) Open() (err error) {
	err = os.MkdirAll(filepath.Dir(f.FilePath), 0755)
	if err != nil {
		return
	}

	f.File, err = os.OpenFile(f.FilePath, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0644)
	if err != nil {
		return
	}
	return
}

func (f *Filedb) Close() (err error) {
	if f.File == nil {
		return
	}

	err = f.File.Close()
	if err != nil {
		return
	}

	f.File = nil

	return
}

func (f *Filedb) WriteLine(s string) (err error) {
	_, err = f.File.WriteString(s)
	if err != nil {
		log.Println("WriteLine err:", err)
		return
	}

	return
}

// ReadLastLine reads the last non-empty line of the file
func (f *Filedb) ReadLastLine() (s string, err error) {
	stat, err := f.File.Stat()
	if err != nil {
		return
	}

	// We don't know how many bytes the last line has, so read the last 1024
	// bytes and extract the last line based on \n
	var b []byte
	var off int64
	size := stat.Size()
	if size < 1024 {
		b = make([]byte, size)
	} else {
		b = make([]byte, 1024)
		off = size - 1024
	}

	_, err = f.File.ReadAt(b, off)
	if err != nil {
		return
	}

	txt := strings.Trim(string(b), " \n")
	txts := strings.Split(txt, "\n")

	if len(txts) == 0 {
		return
	}

	s = txts[len(txts)-1]

	return
}

// ReadFirstLine reads the first non-empty line of the file
func (f *Filedb) ReadFirstLine() (s string, err error) {
	_, err = f.File.Seek(0, 0)
	if err != nil {
		return
	}

	reader := bufio.NewReader(f.File)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				break
			}
			return "", err
		}

		line = strings.TrimSpace(line)
		if line != "" {
			s = line
			return s, nil
		}
	}

	return "", io.EOF
}

// Tailf continuously monitors new data writes and passes them on via ch
func (f *Filedb) Tailf(ch chan<- string) (err error) {
	var loc *tail.SeekInfo
	ta, err := tail.TailFile(f.FilePath, tail.Config{
		Follow:        true,
		ReOpen:        true,
		Location:      loc,
		CompleteLines: true,
	})
	if err != nil {
		return
	}

	for line := range ta.Lines {
		if line.Err != nil {
			// If a line carries an error, stop and surface it. Skipping the
			// line would reorder the journal.
			err = line.Err
			return
		}

		ch <- line.Text
	}

	return
}

// ToMySQL drains ch in batches and hands each batch to ToMySQLHandler
func (f *Filedb) ToMySQL(ch <-chan string) (err error) {
	ss := make([]string, 100)

	for {
		size := 1
		if len(ch) > 1 {
			if len(ch) < len(ss) {
				size = len(ch)
			} else {
				size = len(ss)
			}
		}

		var ok bool
		for i := 0; i < size; i++ {
			ss[i], ok = <-ch
			if !ok {
				return
			}
		}

		err = f.ToMySQLHandler(ss[:size])
		if err != nil {
			return
		}
	}
}
