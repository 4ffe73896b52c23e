package filedb_test

import (
	"fmt"
	"path"
	"testing"
	"time"

	"cwex/pkg/filedb"

	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	fdb, err := filedb.New(path.Join(t.TempDir(), "filedb/test.log"))
	require.Nil(t, err)

	txt := "{this a hi}"
	err = fdb.WriteLine(txt + "\n")
	require.Nil(t, err)

	s, err := fdb.ReadLastLine()
	require.Nil(t, err)
	require.Equal(t, txt, s)
}

func TestReadFirstLine(t *testing.T) {
	fdb, err := filedb.New(path.Join(t.TempDir(), "filedb/test.log"))
	require.Nil(t, err)

	err = fdb.WriteLine("first\n")
	require.Nil(t, err)
	err = fdb.WriteLine("second\n")
	require.Nil(t, err)

	line, err := fdb.ReadFirstLine()
	require.Nil(t, err)
	require.Equal(t, "first", line)
}

func TestReadLastLine(t *testing.T) {
	fdb, err := filedb.New(path.Join(t.TempDir(), "filedb/test.log"))
	require.Nil(t, err)

	for i := 0; i < 10; i++ {
		err = fdb.WriteLine(fmt.Sprintf("line %d\n", i))
		require.Nil(t, err)
	}

	line, err := fdb.ReadLastLine()
	require.Nil(t, err)
	require.Equal(t, "line 9", line)
}

func TestToMySQL(t *testing.T) {
	fdb, err := filedb.New(path.Join(t.TempDir(), "filedb/test.log"))
	require.Nil(t, err)

	var got []string
	fdb.ToMySQLHandler = func(ss []string) error {
		got = append(got, ss...)
		return nil
	}

	ch := make(chan string, 16)
	for i := 0; i < 5; i++ {
		ch <- fmt.Sprintf("line %d", i)
	}

	go func() {
		time.Sleep(50 * time.Millisecond)
		close(ch)
	}()

	err = fdb.ToMySQL(ch)
	require.Nil(t, err)
	require.Len(t, got, 5)
	require.Equal(t, "line 0", got[0])
	require.Equal(t, "line 4", got[4])
}
