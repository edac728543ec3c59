package workload

import (
	"fmt"
	"io/ioutil"

	"github.com/ghodss/yaml"
	"github.com/pkg/errors"
)

// Profile describes a synthetic stream of actions.
type Profile struct {
	// Keys is the size of the key space. Keys are named Prefix followed by an index.
	Keys   int    `json:"keys"`
	Prefix string `json:"prefix"`
	// ReadKeys and WriteKeys are the number of keys each action reads and writes.
	ReadKeys  int `json:"read-keys"`
	WriteKeys int `json:"write-keys"`
	// Zipf is the skew of key popularity. Zero means uniform, otherwise it must be greater than 1.
	Zipf float64 `json:"zipf"`
	// MultiReplicaRatio is the share of actions that span replicas.
	MultiReplicaRatio float64 `json:"multi-replica-ratio"`
	// Count is the number of actions to generate. Zero means no limit.
	Count int `json:"count"`
	// Rate limits generated actions per second. Zero means no limit.
	Rate float64 `json:"rate"`
	// ReplyChannel, when set, asks for the results of every action on that data channel.
	ReplyChannel string `json:"reply-channel"`
	Seed         int64  `json:"seed"`
}

// DefaultProfile returns a small uniform read-modify-write workload.
func DefaultProfile() *Profile {
	return &Profile{
		Keys:      1000,
		Prefix:    "/k/",
		ReadKeys:  2,
		WriteKeys: 1,
		Count:     10000,
		Seed:      1,
	}
}

// LoadProfile reads a yaml profile. Missing fields keep the values of DefaultProfile.
func LoadProfile(path string) (*Profile, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	p := DefaultProfile()
	if err = yaml.Unmarshal(data, p); err != nil {
		return nil, errors.Wrapf(err, "parse workload profile %s", path)
	}
	return p, p.Validate()
}

func (p *Profile) Validate() error {
	if p.Keys <= 0 {
		return errors.Errorf("keys must be positive, got %d", p.Keys)
	}
	if p.ReadKeys < 0 || p.WriteKeys < 0 {
		return errors.Errorf("read-keys and write-keys must not be negative")
	}
	if p.Zipf != 0 && p.Zipf <= 1 {
		return errors.Errorf("zipf must be 0 or greater than 1, got %v", p.Zipf)
	}
	if p.MultiReplicaRatio < 0 || p.MultiReplicaRatio > 1 {
		return errors.Errorf("multi-replica-ratio must be within [0, 1], got %v", p.MultiReplicaRatio)
	}
	if p.Count < 0 || p.Rate < 0 {
		return errors.Errorf("count and rate must not be negative")
	}
	return nil
}

// Key returns the name of the i-th key.
func (p *Profile) Key(i int) string {
	return fmt.Sprintf("%s%d", p.Prefix, i)
}

// AllKeys returns every key of the key space.
func (p *Profile) AllKeys() []string {
	keys := make([]string, p.Keys)
	for i := range keys {
		keys[i] = p.Key(i)
	}
	return keys
}
