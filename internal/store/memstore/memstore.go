// Package memstore is an in-memory store.Database used by tests. It understands the same
// filter/update operators the services send to MongoDB and enforces store.UniqueIndexes.
package memstore

import (
	"bytes"
	"context"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"pcba-mpi-api-server/internal/store"
)

type Op string

const (
	OpInsert Op = "insert"
	OpFind   Op = "find"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
	OpCount  Op = "count"
)

type DB struct {
	mu       sync.Mutex
	colls    map[string][]bson.M
	indexes  map[string][]store.IndexSpec
	failures map[string]error
}

func New() *DB {
	db := &DB{
		colls:    make(map[string][]bson.M),
		indexes:  make(map[string][]store.IndexSpec),
		failures: make(map[string]error),
	}
	for _, idx := range store.UniqueIndexes {
		db.indexes[idx.Collection] = append(db.indexes[idx.Collection], idx)
	}
	return db
}

func (d *DB) Collection(name string) store.Collection {
	return &collection{db: d, name: name}
}

func (d *DB) Ping(ctx context.Context) error { return ctx.Err() }

// FailNext makes the next op on the named collection return err.
func (d *DB) FailNext(coll string, op Op, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failures[coll+"/"+string(op)] = err
}

// Len returns the number of documents in a collection.
func (d *DB) Len(coll string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.colls[coll])
}

func (d *DB) takeFailure(coll string, op Op) error {
	key := coll + "/" + string(op)
	if err, ok := d.failures[key]; ok {
		delete(d.failures, key)
		return err
	}
	return nil
}

type collection struct {
	db   *DB
	name string
}

func (c *collection) InsertOne(ctx context.Context, doc interface{}) (primitive.ObjectID, error) {
	c.db.mu.Lock()
	defer c.db.mu.Unlock()
	if err := c.db.takeFailure(c.name, OpInsert); err != nil {
		return primitive.NilObjectID, err
	}

	m, err := toDoc(doc)
	if err != nil {
		return primitive.NilObjectID, err
	}
	id, ok := m["_id"].(primitive.ObjectID)
	if !ok || id.IsZero() {
		id = primitive.NewObjectID()
		m["_id"] = id
	}
	for _, existing := range c.db.colls[c.name] {
		if existing["_id"] == id {
			return primitive.NilObjectID, fmt.Errorf("%w: _id %s", store.ErrDuplicateKey, id.Hex())
		}
	}
	if err := c.checkUnique(m); err != nil {
		return primitive.NilObjectID, err
	}
	c.db.colls[c.name] = append(c.db.colls[c.name], m)
	return id, nil
}

func (c *collection) FindOne(ctx context.Context, filter bson.M, out interface{}) error {
	c.db.mu.Lock()
	defer c.db.mu.Unlock()
	if err := c.db.takeFailure(c.name, OpFind); err != nil {
		return err
	}
	for _, doc := range c.db.colls[c.name] {
		ok, err := matches(doc, filter)
		if err != nil {
			return err
		}
		if ok {
			return decode(doc, out)
		}
	}
	return store.ErrNotFound
}

func (c *collection) Find(ctx context.Context, filter bson.M, opts store.FindOptions, out interface{}) error {
	c.db.mu.Lock()
	defer c.db.mu.Unlock()
	if err := c.db.takeFailure(c.name, OpFind); err != nil {
		return err
	}

	var found []bson.M
	for _, doc := range c.db.colls[c.name] {
		ok, err := matches(doc, filter)
		if err != nil {
			return err
		}
		if ok {
			found = append(found, doc)
		}
	}
	if len(opts.Sort) > 0 {
		sort.SliceStable(found, func(i, j int) bool {
			for _, key := range opts.Sort {
				cmp := compareValues(found[i][key.Key], found[j][key.Key])
				if cmp == 0 {
					continue
				}
				if direction(key.Value) < 0 {
					return cmp > 0
				}
				return cmp < 0
			}
			return false
		})
	}
	if opts.Limit > 0 && int64(len(found)) > opts.Limit {
		found = found[:opts.Limit]
	}

	rv := reflect.ValueOf(out)
	if rv.Kind() != reflect.Ptr || rv.Elem().Kind() != reflect.Slice {
		return fmt.Errorf("memstore: Find needs a pointer to a slice, got %T", out)
	}
	sliceType := rv.Elem().Type()
	result := reflect.MakeSlice(sliceType, 0, len(found))
	for _, doc := range found {
		elem := reflect.New(sliceType.Elem())
		if err := decode(doc, elem.Interface()); err != nil {
			return err
		}
		result = reflect.Append(result, elem.Elem())
	}
	rv.Elem().Set(result)
	return nil
}

func (c *collection) UpdateOne(ctx context.Context, filter bson.M, update bson.M) (int64, error) {
	return c.update(filter, update, false)
}

func (c *collection) UpdateMany(ctx context.Context, filter bson.M, update bson.M) (int64, error) {
	return c.update(filter, update, true)
}

func (c *collection) update(filter bson.M, update bson.M, many bool) (int64, error) {
	c.db.mu.Lock()
	defer c.db.mu.Unlock()
	if err := c.db.takeFailure(c.name, OpUpdate); err != nil {
		return 0, err
	}

	var n int64
	docs := c.db.colls[c.name]
	for i, doc := range docs {
		ok, err := matches(doc, filter)
		if err != nil {
			return n, err
		}
		if !ok {
			continue
		}
		next, err := applyUpdate(doc, filter, update)
		if err != nil {
			return n, err
		}
		if err := c.checkUnique(next); err != nil {
			return n, err
		}
		docs[i] = next
		n++
		if !many {
			break
		}
	}
	return n, nil
}

func (c *collection) DeleteOne(ctx context.Context, filter bson.M) (int64, error) {
	c.db.mu.Lock()
	defer c.db.mu.Unlock()
	if err := c.db.takeFailure(c.name, OpDelete); err != nil {
		return 0, err
	}

	docs := c.db.colls[c.name]
	for i, doc := range docs {
		ok, err := matches(doc, filter)
		if err != nil {
			return 0, err
		}
		if ok {
			c.db.colls[c.name] = append(docs[:i:i], docs[i+1:]...)
			return 1, nil
		}
	}
	return 0, nil
}

func (c *collection) CountDocuments(ctx context.Context, filter bson.M) (int64, error) {
	c.db.mu.Lock()
	defer c.db.mu.Unlock()
	if err := c.db.takeFailure(c.name, OpCount); err != nil {
		return 0, err
	}

	var n int64
	for _, doc := range c.db.colls[c.name] {
		ok, err := matches(doc, filter)
		if err != nil {
			return 0, err
		}
		if ok {
			n++
		}
	}
	return n, nil
}

func (c *collection) checkUnique(doc bson.M) error {
	for _, idx := range c.db.indexes[c.name] {
		if idx.ActiveOnly && doc["isActive"] != true {
			continue
		}
		for _, other := range c.db.colls[c.name] {
			if other["_id"] == doc["_id"] {
				continue
			}
			if idx.ActiveOnly && other["isActive"] != true {
				continue
			}
			same := true
			for _, field := range idx.Fields {
				a, b := other[field], doc[field]
				if idx.CaseInsensitive {
					a, b = fold(a), fold(b)
				}
				if !equalValues(a, b) {
					same = false
					break
				}
			}
			if same {
				return fmt.Errorf("%w: %s index on %s", store.ErrDuplicateKey, c.name, strings.Join(idx.Fields, ","))
			}
		}
	}
	return nil
}

func fold(v interface{}) interface{} {
	if s, ok := v.(string); ok {
		return strings.ToLower(s)
	}
	return v
}

func toDoc(v interface{}) (bson.M, error) {
	raw, err := bson.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m bson.M
	if err := bson.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func decode(doc bson.M, out interface{}) error {
	raw, err := bson.Marshal(doc)
	if err != nil {
		return err
	}
	return bson.Unmarshal(raw, out)
}

// normalize round-trips a value through BSON so it compares like a stored value.
func normalize(v interface{}) (interface{}, error) {
	m, err := toDoc(bson.M{"v": v})
	if err != nil {
		return nil, err
	}
	return m["v"], nil
}

func direction(v interface{}) int {
	switch n := v.(type) {
	case int:
		return n
	case int32:
		return int(n)
	case int64:
		return int(n)
	}
	return 1
}

func applyUpdate(doc bson.M, filter bson.M, update bson.M) (bson.M, error) {
	next := make(bson.M, len(doc))
	for k, v := range doc {
		next[k] = v
	}
	for op, arg := range update {
		fields, ok := asDoc(arg)
		if !ok {
			return nil, fmt.Errorf("memstore: %s expects a document, got %T", op, arg)
		}
		for field, value := range fields {
			var err error
			switch op {
			case "$set":
				err = setField(next, filter, field, value)
			case "$unset":
				delete(next, field)
			case "$inc":
				err = inc(next, field, value)
			case "$push":
				err = push(next, field, value)
			case "$pull":
				err = pull(next, field, value)
			default:
				err = fmt.Errorf("memstore: unsupported update operator %s", op)
			}
			if err != nil {
				return nil, err
			}
		}
	}
	return next, nil
}

// setField handles plain fields and the positional "arr.$.field" form, which targets the first
// element matched by a filter on "arr.<field>".
func setField(doc bson.M, filter bson.M, field string, value interface{}) error {
	nv, err := normalize(value)
	if err != nil {
		return err
	}
	arr, sub, positional := strings.Cut(field, ".$.")
	if !positional {
		doc[field] = nv
		return nil
	}
	items, _ := doc[arr].(bson.A)
	i, err := positionalIndex(items, filter, arr)
	if err != nil {
		return err
	}
	if i < 0 {
		return fmt.Errorf("memstore: no %s element matched the filter", arr)
	}
	elem, ok := asDoc(items[i])
	if !ok {
		return fmt.Errorf("memstore: %s element %d is not a document", arr, i)
	}
	updated := make(bson.M, len(elem)+1)
	for k, v := range elem {
		updated[k] = v
	}
	updated[sub] = nv
	out := append(bson.A(nil), items...)
	out[i] = updated
	doc[arr] = out
	return nil
}

func positionalIndex(items bson.A, filter bson.M, arr string) (int, error) {
	for key, want := range filter {
		sub, ok := strings.CutPrefix(key, arr+".")
		if !ok {
			continue
		}
		for i, item := range items {
			elem, ok := asDoc(item)
			if !ok {
				continue
			}
			got, present := elem[sub]
			hit, err := matchField(got, present, want)
			if err != nil {
				return -1, err
			}
			if hit {
				return i, nil
			}
		}
		return -1, nil
	}
	return -1, fmt.Errorf("memstore: positional update on %s needs a filter on %s.<field>", arr, arr)
}

func inc(doc bson.M, field string, value interface{}) error {
	nv, err := normalize(value)
	if err != nil {
		return err
	}
	cur, _ := toFloat(doc[field])
	delta, ok := toFloat(nv)
	if !ok {
		return fmt.Errorf("memstore: $inc on %s needs a number", field)
	}
	doc[field] = int64(cur + delta)
	return nil
}

// push appends one value, or every value of {$each: [...]} followed by an optional $sort.
func push(doc bson.M, field string, value interface{}) error {
	items := []interface{}{value}
	var sortBy bson.D
	if spec, ok := value.(bson.M); ok {
		if each, ok := spec["$each"]; ok {
			rv := reflect.ValueOf(each)
			if rv.Kind() != reflect.Slice {
				return fmt.Errorf("memstore: $each needs an array, got %T", each)
			}
			items = items[:0]
			for i := 0; i < rv.Len(); i++ {
				items = append(items, rv.Index(i).Interface())
			}
			sortBy = sortKeys(spec["$sort"])
		}
	}

	var arr bson.A
	if existing, ok := doc[field].(bson.A); ok {
		arr = append(arr, existing...)
	}
	for _, item := range items {
		nv, err := normalize(item)
		if err != nil {
			return err
		}
		arr = append(arr, nv)
	}
	if len(sortBy) > 0 {
		sort.SliceStable(arr, func(i, j int) bool {
			a, _ := asDoc(arr[i])
			b, _ := asDoc(arr[j])
			for _, key := range sortBy {
				cmp := compareValues(a[key.Key], b[key.Key])
				if cmp == 0 {
					continue
				}
				if direction(key.Value) < 0 {
					return cmp > 0
				}
				return cmp < 0
			}
			return false
		})
	}
	if arr == nil {
		arr = bson.A{}
	}
	doc[field] = arr
	return nil
}

// pull removes elements equal to cond, or documents matching it when cond is a query.
func pull(doc bson.M, field string, cond interface{}) error {
	items, ok := doc[field].(bson.A)
	if !ok {
		return nil
	}
	query, isQuery := asDoc(cond)
	var want interface{}
	if !isQuery {
		nv, err := normalize(cond)
		if err != nil {
			return err
		}
		want = nv
	}
	kept := bson.A{}
	for _, item := range items {
		var hit bool
		if isQuery {
			if elem, ok := asDoc(item); ok {
				var err error
				if hit, err = matches(elem, query); err != nil {
					return err
				}
			}
		} else {
			hit = equalValues(item, want)
		}
		if !hit {
			kept = append(kept, item)
		}
	}
	doc[field] = kept
	return nil
}

func sortKeys(v interface{}) bson.D {
	switch s := v.(type) {
	case bson.D:
		return s
	case bson.M:
		keys := make(bson.D, 0, len(s))
		for k, dir := range s {
			keys = append(keys, bson.E{Key: k, Value: dir})
		}
		return keys
	}
	return nil
}

func asDoc(v interface{}) (bson.M, bool) {
	switch d := v.(type) {
	case bson.M:
		return d, true
	case bson.D:
		return d.Map(), true
	}
	return nil, false
}

func matches(doc bson.M, filter bson.M) (bool, error) {
	for key, want := range filter {
		if strings.HasPrefix(key, "$") {
			return false, fmt.Errorf("memstore: unsupported top-level operator %s", key)
		}
		ok, err := matchPath(doc, key, want)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

// matchPath resolves dotted keys. Through an array it matches when any element does.
func matchPath(doc bson.M, key string, want interface{}) (bool, error) {
	head, rest, dotted := strings.Cut(key, ".")
	got, present := doc[head]
	if !dotted {
		return matchField(got, present, want)
	}
	if items, ok := got.(bson.A); ok {
		for _, item := range items {
			elem, ok := asDoc(item)
			if !ok {
				continue
			}
			hit, err := matchPath(elem, rest, want)
			if err != nil || hit {
				return hit, err
			}
		}
		return false, nil
	}
	if elem, ok := asDoc(got); ok {
		return matchPath(elem, rest, want)
	}
	return matchField(nil, false, want)
}

func matchField(got interface{}, present bool, want interface{}) (bool, error) {
	switch w := want.(type) {
	case primitive.Regex:
		return matchRegex(got, w)
	case bson.M:
		if isOperatorDoc(w) {
			for op, arg := range w {
				ok, err := matchOperator(got, present, op, arg)
				if err != nil || !ok {
					return false, err
				}
			}
			return true, nil
		}
	}
	if want == nil {
		return !present || got == nil, nil
	}
	nw, err := normalize(want)
	if err != nil {
		return false, err
	}
	return present && equalValues(got, nw), nil
}

func matchOperator(got interface{}, present bool, op string, arg interface{}) (bool, error) {
	switch op {
	case "$eq":
		return matchField(got, present, arg)
	case "$ne":
		ok, err := matchField(got, present, arg)
		return !ok, err
	case "$in":
		rv := reflect.ValueOf(arg)
		if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
			return false, fmt.Errorf("memstore: $in needs an array, got %T", arg)
		}
		for i := 0; i < rv.Len(); i++ {
			ok, err := matchField(got, present, rv.Index(i).Interface())
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	case "$gt", "$gte", "$lt", "$lte":
		if !present || got == nil {
			return false, nil
		}
		nw, err := normalize(arg)
		if err != nil {
			return false, err
		}
		cmp := compareValues(got, nw)
		switch op {
		case "$gt":
			return cmp > 0, nil
		case "$gte":
			return cmp >= 0, nil
		case "$lt":
			return cmp < 0, nil
		}
		return cmp <= 0, nil
	case "$exists":
		want, _ := arg.(bool)
		return present == want, nil
	case "$regex":
		switch r := arg.(type) {
		case primitive.Regex:
			return matchRegex(got, r)
		case string:
			return matchRegex(got, primitive.Regex{Pattern: r})
		}
		return false, fmt.Errorf("memstore: bad $regex argument %T", arg)
	}
	return false, fmt.Errorf("memstore: unsupported operator %s", op)
}

func isOperatorDoc(m bson.M) bool {
	if len(m) == 0 {
		return false
	}
	for k := range m {
		if !strings.HasPrefix(k, "$") {
			return false
		}
	}
	return true
}

func matchRegex(got interface{}, r primitive.Regex) (bool, error) {
	s, ok := got.(string)
	if !ok {
		return false, nil
	}
	pattern := r.Pattern
	if strings.Contains(r.Options, "i") {
		pattern = "(?i)" + pattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return false, err
	}
	return re.MatchString(s), nil
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func equalValues(a, b interface{}) bool {
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		return ok && fa == fb
	}
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ta, da, errA := bson.MarshalValue(a)
	tb, db, errB := bson.MarshalValue(b)
	if errA != nil || errB != nil {
		return reflect.DeepEqual(a, b)
	}
	return ta == tb && bytes.Equal(da, db)
}

func compareValues(a, b interface{}) int {
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0
		case a == nil:
			return -1
		default:
			return 1
		}
	}
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			switch {
			case fa < fb:
				return -1
			case fa > fb:
				return 1
			}
			return 0
		}
	}
	switch x := a.(type) {
	case string:
		if y, ok := b.(string); ok {
			return strings.Compare(x, y)
		}
	case primitive.DateTime:
		if y, ok := b.(primitive.DateTime); ok {
			switch {
			case x < y:
				return -1
			case x > y:
				return 1
			}
			return 0
		}
	case primitive.ObjectID:
		if y, ok := b.(primitive.ObjectID); ok {
			return strings.Compare(x.Hex(), y.Hex())
		}
	case bool:
		if y, ok := b.(bool); ok && x != y {
			if !x {
				return -1
			}
			return 1
		}
		return 0
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}
