// Package did provides the file-backed secret store used by the daemon to
// persist identity key material between runs.
package did

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/tcfw/didmsg/pkg/did"
)

type secretsFile struct {
	Secrets []did.Secret `yaml:"secrets"`
}

var _ did.SecretStore = (*FileStore)(nil)

// FileStore persists secrets as yaml, created 0600. Reads are served from
// an in-memory index; every mutation rewrites the file
type FileStore struct {
	path string
	idx  map[string]did.Secret

	mu sync.Mutex
}

func NewFileStore(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, errors.Wrap(err, "creating secrets dir")
	}

	f := &FileStore{path: path}
	if err := f.read(); err != nil {
		return nil, err
	}

	return f, nil
}

func (fs *FileStore) read() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	f, err := os.OpenFile(fs.path, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return errors.Wrap(err, "opening secrets file for read")
	}
	defer f.Close()

	d, err := ioutil.ReadAll(f)
	if err != nil {
		return errors.Wrap(err, "reading secrets file")
	}

	var sf secretsFile
	if err := yaml.Unmarshal(d, &sf); err != nil {
		return errors.Wrap(err, "unmarshalling secrets")
	}

	fs.idx = make(map[string]did.Secret, len(sf.Secrets))
	for _, s := range sf.Secrets {
		fs.idx[s.ID] = s
	}

	return nil
}

func (fs *FileStore) Put(s did.Secret) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	fs.idx[s.ID] = s

	return fs.write()
}

func (fs *FileStore) Get(id string) (*did.Secret, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	s, ok := fs.idx[id]
	if !ok {
		return nil, errors.Wrap(did.ErrNoSecret, id)
	}

	return &s, nil
}

func (fs *FileStore) Delete(id string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	delete(fs.idx, id)

	return fs.write()
}

func (fs *FileStore) Clear() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	fs.idx = make(map[string]did.Secret)

	return fs.write()
}

func (fs *FileStore) Close() error {
	return nil
}

func (fs *FileStore) write() error {
	//assumes locked fs.mu

	sf := secretsFile{Secrets: make([]did.Secret, 0, len(fs.idx))}
	for _, s := range fs.idx {
		sf.Secrets = append(sf.Secrets, s)
	}

	d, err := yaml.Marshal(&sf)
	if err != nil {
		return errors.Wrap(err, "marshalling secrets")
	}

	f, err := os.OpenFile(fs.path, os.O_CREATE|os.O_RDWR|os.O_TRUNC, 0600)
	if err != nil {
		return errors.Wrap(err, "opening secrets file for write")
	}
	defer f.Close()

	_, err = f.Write(d)

	return errors.Wrap(err, "writing secrets file")
}
