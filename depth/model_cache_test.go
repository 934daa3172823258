package depth

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"go.viam.com/test"
)

func TestModelCacheLoadsOnce(t *testing.T) {
	var loads atomic.Int32
	model := &fakeModel{out: constantOutput(1, 1, 1)}
	cache := NewModelCache(func(ctx context.Context) (Model, error) {
		loads.Add(1)
		return model, nil
	})
	test.That(t, cache.Loaded(), test.ShouldBeFalse)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := cache.Get(context.Background())
			if err != nil || got != Model(model) {
				t.Errorf("unexpected Get result %v %v", got, err)
			}
		}()
	}
	wg.Wait()
	got, err := cache.Get(context.Background())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, got, test.ShouldEqual, model)
	test.That(t, loads.Load(), test.ShouldEqual, int32(1))
	test.That(t, cache.Loaded(), test.ShouldBeTrue)

	_, err = cache.Infer(context.Background(), nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, model.inputs, test.ShouldHaveLength, 1)

	test.That(t, cache.Close(context.Background()), test.ShouldBeNil)
	test.That(t, model.closed, test.ShouldEqual, 1)
	test.That(t, cache.Close(context.Background()), test.ShouldBeNil)
	test.That(t, model.closed, test.ShouldEqual, 1)

	_, err = cache.Get(context.Background())
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, loads.Load(), test.ShouldEqual, int32(1))
}

func TestModelCacheRetriesFailedLoad(t *testing.T) {
	boom := errors.New("weights missing")
	attempts := 0
	model := &fakeModel{}
	cache := NewModelCache(func(ctx context.Context) (Model, error) {
		attempts++
		if attempts == 1 {
			return nil, boom
		}
		return model, nil
	})

	_, err := cache.Get(context.Background())
	test.That(t, errors.Is(err, boom), test.ShouldBeTrue)
	test.That(t, cache.Loaded(), test.ShouldBeFalse)

	got, err := cache.Get(context.Background())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, got, test.ShouldEqual, model)
	test.That(t, attempts, test.ShouldEqual, 2)
}

func TestModelCacheCloseUnloaded(t *testing.T) {
	cache := NewModelCache(func(ctx context.Context) (Model, error) {
		t.Fatal("should not load")
		return nil, nil
	})
	test.That(t, cache.Close(context.Background()), test.ShouldBeNil)

	nilModel := NewModelCache(func(ctx context.Context) (Model, error) {
		return nil, nil
	})
	_, err := nilModel.Get(context.Background())
	test.That(t, err, test.ShouldNotBeNil)
}
