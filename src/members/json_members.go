package members

import (
	"bytes"
	"encoding/json"
	"io/ioutil"
	"path/filepath"
	"strings"
	"sync"
)

const jsonMembersPath = "members.json"

// JSONMemberFile provides membership bootstrap and persistence on disk in the
// form of a JSON file in the node's data directory. A node joining the hive
// reads its initial contact list from this file.
type JSONMemberFile struct {
	l    sync.Mutex
	path string
}

// NewJSONMemberFile creates a new JSONMemberFile with reference to a base
// directory where the JSON file resides.
func NewJSONMemberFile(base string) *JSONMemberFile {
	return &JSONMemberFile{
		path: filepath.Join(base, jsonMembersPath),
	}
}

// Records parses the underlying JSON file and returns the corresponding
// membership records.
func (j *JSONMemberFile) Records() ([]*Record, error) {
	j.l.Lock()
	defer j.l.Unlock()

	buf, err := ioutil.ReadFile(j.path)
	if err != nil {
		return nil, err
	}

	if len(buf) == 0 {
		return nil, nil
	}

	var records []*Record
	dec := json.NewDecoder(bytes.NewReader(buf))
	if err := dec.Decode(&records); err != nil {
		return nil, err
	}

	cleanseRecords(records)

	return records, nil
}

// cleanseRecords standardises the public key strings to match the format the
// node derives from a private key.
func cleanseRecords(records []*Record) {
	for _, rec := range records {
		rec.PubKeyHex = "0X" + strings.TrimPrefix(strings.ToUpper(rec.PubKeyHex), "0X")
	}
}

// Write persists membership records to the JSON file.
func (j *JSONMemberFile) Write(records []*Record) error {
	j.l.Lock()
	defer j.l.Unlock()

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	if err := enc.Encode(records); err != nil {
		return err
	}

	return ioutil.WriteFile(j.path, buf.Bytes(), 0755)
}
