package masterkey

type memKV struct {
	m map[string][]byte
}

func newMemKV() *memKV {
	return &memKV{m: make(map[string][]byte)}
}

func (k *memKV) Get(key string) ([]byte, error) {
	v, ok := k.m[key]
	if !ok {
		return nil, ErrKeyNotFound
	}
	return v, nil
}

func (k *memKV) Put(key string, value []byte) error {
	k.m[key] = append([]byte(nil), value...)
	return nil
}
