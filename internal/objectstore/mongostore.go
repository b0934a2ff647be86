package objectstore

import (
	"context"
	"io"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// blobDocument is one object document, adapted from the teacher's
// FileDocument (which also carried POSIX mode/uid/gid for FUSE) down to the
// fields a read-mostly ObjectStore needs.
type blobDocument struct {
	Path         string    `bson:"path"`
	Bucket       string    `bson:"bucket"`
	Data         []byte    `bson:"data"`
	Size         int64     `bson:"size"`
	ContentType  string    `bson:"content_type,omitempty"`
	LastModified time.Time `bson:"last_modified"`
}

// MongoStore is an ObjectStore backed by a MongoDB collection of
// blobDocuments, adapted from the teacher's MongoBackend.
type MongoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// NewMongoStore connects to uri and uses database.collection as the blob
// store, creating the (bucket,path) index the teacher's backend also builds.
func NewMongoStore(ctx context.Context, uri, database, collection string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, New(KindInternal, "NewMongoStore", "", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, New(KindNetworkError, "NewMongoStore", "", err)
	}

	coll := client.Database(database).Collection(collection)
	indexModel := mongo.IndexModel{
		Keys: bson.D{{Key: "bucket", Value: 1}, {Key: "path", Value: 1}},
	}
	if _, err := coll.Indexes().CreateOne(ctx, indexModel); err != nil {
		client.Disconnect(ctx)
		return nil, New(KindInternal, "NewMongoStore", "", err)
	}

	return &MongoStore{client: client, collection: coll}, nil
}

// Close disconnects the underlying Mongo client.
func (s *MongoStore) Close(ctx context.Context) error { return s.client.Disconnect(ctx) }

func (s *MongoStore) ListBuckets(ctx context.Context) ([]BucketInfo, error) {
	names, err := s.collection.Distinct(ctx, "bucket", bson.M{})
	if err != nil {
		return nil, New(KindNetworkError, "ListBuckets", "", err)
	}
	out := make([]BucketInfo, 0, len(names))
	for _, n := range names {
		if s, ok := n.(string); ok {
			out = append(out, BucketInfo{Name: s})
		}
	}
	return out, nil
}

func (s *MongoStore) ListPrefix(ctx context.Context, bucket, prefix, delim, continuation string) (ListPrefixResult, error) {
	filter := bson.M{"bucket": bucket, "path": bson.M{"$regex": "^" + regexQuote(prefix)}}
	cursor, err := s.collection.Find(ctx, filter, options.Find().SetSort(bson.M{"path": 1}))
	if err != nil {
		return ListPrefixResult{}, New(KindNetworkError, "ListPrefix", bucket, err)
	}
	defer cursor.Close(ctx)

	prefixSet := map[string]bool{}
	var res ListPrefixResult
	for cursor.Next(ctx) {
		var doc blobDocument
		if err := cursor.Decode(&doc); err != nil {
			return ListPrefixResult{}, New(KindInternal, "ListPrefix", bucket, err)
		}
		rest := doc.Path[len(prefix):]
		if delim != "" {
			if idx := strings.Index(rest, delim); idx >= 0 {
				cp := prefix + rest[:idx+len(delim)]
				if !prefixSet[cp] {
					prefixSet[cp] = true
					res.CommonPrefixes = append(res.CommonPrefixes, cp)
				}
				continue
			}
		}
		res.Objects = append(res.Objects, ObjectInfo{Key: doc.Path, Size: doc.Size, LastModified: doc.LastModified})
	}
	return res, cursor.Err()
}

func (s *MongoStore) findOne(ctx context.Context, bucket, key string) (blobDocument, error) {
	var doc blobDocument
	err := s.collection.FindOne(ctx, bson.M{"bucket": bucket, "path": key}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return doc, New(KindNotFound, "Get", bucket+"/"+key, err)
	}
	if err != nil {
		return doc, New(KindNetworkError, "Get", bucket+"/"+key, err)
	}
	return doc, nil
}

func (s *MongoStore) Head(ctx context.Context, bucket, key string) (HeadInfo, error) {
	doc, err := s.findOne(ctx, bucket, key)
	if err != nil {
		return HeadInfo{}, err
	}
	return HeadInfo{Size: doc.Size, ContentType: doc.ContentType}, nil
}

func (s *MongoStore) GetRange(ctx context.Context, bucket, key string, start, end int64) (io.ReadCloser, error) {
	doc, err := s.findOne(ctx, bucket, key)
	if err != nil {
		return nil, err
	}
	n := int64(len(doc.Data))
	if start < 0 && end == -1 {
		start = n + start
		if start < 0 {
			start = 0
		}
		end = n - 1
	} else if end == -1 {
		end = n - 1
	}
	if start < 0 || start >= n || end < start {
		return nil, New(KindProtocolError, "GetRange", bucket+"/"+key, nil)
	}
	if end >= n {
		end = n - 1
	}
	return io.NopCloser(strings.NewReader(string(doc.Data[start : end+1]))), nil
}

func (s *MongoStore) GetFull(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	doc, err := s.findOne(ctx, bucket, key)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(strings.NewReader(string(doc.Data))), nil
}

func regexQuote(s string) string {
	special := `\.+*?()|[]{}^$`
	var b strings.Builder
	for _, r := range s {
		if strings.ContainsRune(special, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

var _ ObjectStore = (*MongoStore)(nil)
