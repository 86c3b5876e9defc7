package digraph_test

import (
	"io"
	"reflect"
	"sync/atomic"
	"testing"
	"testing/fstest"

	"github.com/centraunit/digraph"
	"github.com/centraunit/digraph/mock"
	"github.com/sirupsen/logrus"
	logrustest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/suite"
)

type FeaturesTestSuite struct {
	suite.Suite
}

func (s *FeaturesTestSuite) TestPerRequest() {
	c := digraph.New()

	s.Run("ResolveRefused", func() {
		_, err := digraph.ResolveAs[*mock.Session](c)
		s.Error(err)
		s.Contains(err.Error(), "per-request")
	})

	s.Run("CreateAllowed", func() {
		first, err := digraph.CreateAs[*mock.Session](c)
		s.NoError(err)
		second, err := digraph.CreateAs[*mock.Session](c)
		s.NoError(err)
		s.NotSame(first, second)
	})
}

func (s *FeaturesTestSuite) TestFactoryParameter() {
	c := digraph.New()
	spawner, err := digraph.ResolveAs[*mock.Spawner](c)
	s.NoError(err)
	first := spawner.NewSession()
	second := spawner.NewSession()
	s.NotNil(first)
	s.NotSame(first, second)
}

func (s *FeaturesTestSuite) TestArgumentFactoryParameter() {
	c := digraph.New()
	greeter, err := digraph.ResolveAs[*mock.Greeter](c)
	s.NoError(err)
	hello := greeter.Build("hello")
	s.Equal("hello", hello.Message)
	other := greeter.Build("goodbye")
	s.Equal("goodbye", other.Message)
	s.NotSame(hello, other)
}

func (s *FeaturesTestSuite) TestLazyParameter() {
	var calls atomic.Int32
	c := digraph.New(func(b *digraph.ConfigurationBuilder) {
		digraph.For[mock.Database](b).UseFactory(func(*digraph.Container) (any, error) {
			calls.Add(1)
			return &mock.MemoryDB{}, nil
		})
	})
	deferred, err := digraph.ResolveAs[*mock.Deferred](c)
	s.NoError(err)
	s.Equal(int32(0), calls.Load(), "lazy dependencies resolve on first use, not at wiring time")

	db, err := deferred.DB.Value()
	s.NoError(err)
	s.IsType(&mock.MemoryDB{}, db)
	again, err := deferred.DB.Value()
	s.NoError(err)
	s.Same(db, again)
	s.Equal(int32(1), calls.Load())
}

func (s *FeaturesTestSuite) TestDefaultsAndOptional() {
	c := digraph.New()
	t, err := digraph.ResolveAs[*mock.Tunable](c)
	s.NoError(err)
	s.Equal(42, t.Limit)
	s.Equal("fallback", t.Name)
	s.Nil(t.Extra)
}

func (s *FeaturesTestSuite) TestUnconfiguredSimpleParameter() {
	c := digraph.New()
	_, err := digraph.ResolveAs[*mock.Plain](c)
	s.Error(err)
	s.Contains(err.Error(), "parameter [Addr] of service [*mock.Plain] is not configured")
}

func (s *FeaturesTestSuite) TestParameterOverrides() {
	s.Run("Value", func() {
		c := digraph.New(func(b *digraph.ConfigurationBuilder) {
			digraph.For[*mock.Plain](b).BindValue("Addr", "localhost:5432")
		})
		p, err := digraph.ResolveAs[*mock.Plain](c)
		s.NoError(err)
		s.Equal("localhost:5432", p.Addr)
	})

	s.Run("Factory", func() {
		c := digraph.New(func(b *digraph.ConfigurationBuilder) {
			b.Register(&mock.MemoryDB{})
			digraph.For[*mock.LocalCache](b).BindFactory("DB", func(*digraph.Container) (any, error) {
				return &mock.DiskDB{}, nil
			})
		})
		cache, err := digraph.ResolveAs[*mock.LocalCache](c)
		s.NoError(err)
		s.IsType(&mock.DiskDB{}, cache.DB)
	})

	s.Run("Type", func() {
		c := digraph.New(func(b *digraph.ConfigurationBuilder) {
			b.Register(&mock.MemoryDB{})
			digraph.For[*mock.LocalCache](b).BindType("DB", digraph.TypeOf[*mock.DiskDB]())
		})
		cache, err := digraph.ResolveAs[*mock.LocalCache](c)
		s.NoError(err)
		s.IsType(&mock.DiskDB{}, cache.DB)
	})
}

func (s *FeaturesTestSuite) TestCreateWithArguments() {
	c := digraph.New()
	g, err := digraph.CreateWith[*mock.Greeting](c, map[string]any{"Message": "direct"})
	s.NoError(err)
	s.Equal("direct", g.Message)
}

func (s *FeaturesTestSuite) TestCreateIsAlwaysFresh() {
	c := digraph.New(func(b *digraph.ConfigurationBuilder) {
		b.Register(&mock.MemoryDB{})
	})
	resolved, err := digraph.ResolveAs[mock.Database](c)
	s.NoError(err)
	created, err := digraph.CreateAs[*mock.MemoryDB](c)
	s.NoError(err)
	s.NotSame(resolved, created)

	again, err := digraph.CreateAs[*mock.MemoryDB](c)
	s.NoError(err)
	s.NotSame(created, again)
}

func (s *FeaturesTestSuite) TestResourceParameter() {
	fsys := fstest.MapFS{
		"motd.txt": &fstest.MapFile{Data: []byte("welcome aboard")},
	}

	s.Run("Found", func() {
		c := digraph.New(func(b *digraph.ConfigurationBuilder) {
			b.WithResources(fsys)
		})
		banner, err := digraph.ResolveAs[*mock.Banner](c)
		s.NoError(err)
		data, err := io.ReadAll(banner.Motd)
		s.NoError(err)
		s.Equal("welcome aboard", string(data))
	})

	s.Run("Missing", func() {
		c := digraph.New(func(b *digraph.ConfigurationBuilder) {
			b.WithResources(fstest.MapFS{})
		})
		_, err := digraph.ResolveAs[*mock.Banner](c)
		s.Error(err)
		s.Contains(err.Error(), "can't find resource [motd.txt]")
	})
}

func (s *FeaturesTestSuite) TestServiceNameParameter() {
	c := digraph.New()
	aware, err := digraph.ResolveAs[*mock.SelfAware](c)
	s.NoError(err)
	s.Equal(digraph.TypeOf[*mock.SelfAware](), aware.Who.Type)
}

func (s *FeaturesTestSuite) TestBuildUp() {
	c := digraph.New(func(b *digraph.ConfigurationBuilder) {
		b.Register(&mock.MemoryDB{})
	})
	handler := &mock.Handler{Untagged: "keep"}
	built, err := c.BuildUp(handler)
	s.NoError(err)
	s.IsType(&mock.MemoryDB{}, handler.DB)
	s.Nil(handler.Fallback, "optional field with no implementation stays nil")
	s.Equal("keep", handler.Untagged)
	s.NotEmpty(built.Dependencies())
	s.Same(handler.DB, built.Dependencies()[0].Value())
	s.Same(handler, built.Target())

	// Build-up shares the singleton cache for dependencies.
	db, err := digraph.ResolveAs[mock.Database](c)
	s.NoError(err)
	s.Same(db, handler.DB)
}

func (s *FeaturesTestSuite) TestInstanceFilter() {
	c := digraph.New(func(b *digraph.ConfigurationBuilder) {
		b.Register(&mock.MemoryDB{}, &mock.DiskDB{})
		digraph.For[mock.Database](b).WithInstanceFilter(func(v any) bool {
			_, isDisk := v.(*mock.DiskDB)
			return isDisk
		})
	})
	db, err := digraph.ResolveAs[mock.Database](c)
	s.NoError(err)
	s.IsType(&mock.DiskDB{}, db)
}

func (s *FeaturesTestSuite) TestImplementationSelector() {
	c := digraph.New(func(b *digraph.ConfigurationBuilder) {
		b.Register(&mock.MemoryDB{}, &mock.DiskDB{})
		b.WithSelector(func(iface reflect.Type, candidates []*digraph.ImplementationCandidate) {
			for _, cand := range candidates {
				if cand.Type == digraph.TypeOf[*mock.MemoryDB]() {
					cand.Excluded = true
					cand.Comment = "memory is for tests only"
				}
			}
		})
	})
	resolved := c.Resolve(digraph.TypeOf[mock.Database]())
	db, err := resolved.Single()
	s.NoError(err)
	s.IsType(&mock.DiskDB{}, db)
	s.Contains(resolved.ConstructionLog(), "memory is for tests only")
}

func (s *FeaturesTestSuite) TestDontUse() {
	c := digraph.New(func(b *digraph.ConfigurationBuilder) {
		b.Register(&mock.MemoryDB{}, &mock.DiskDB{})
		digraph.For[*mock.MemoryDB](b).DontUse()
	})
	db, err := digraph.ResolveAs[mock.Database](c)
	s.NoError(err)
	s.IsType(&mock.DiskDB{}, db)
}

func (s *FeaturesTestSuite) TestIgnoredImplementation() {
	c := digraph.New(func(b *digraph.ConfigurationBuilder) {
		b.Register(&mock.MemoryDB{}, &mock.DiskDB{})
		digraph.For[*mock.MemoryDB](b).IgnoreImplementation()
	})
	db, err := digraph.ResolveAs[mock.Database](c)
	s.NoError(err)
	s.IsType(&mock.DiskDB{}, db)
}

func (s *FeaturesTestSuite) TestImplicitDependency() {
	c := digraph.New(func(b *digraph.ConfigurationBuilder) {
		b.Register(&mock.MemoryDB{})
		digraph.For[*mock.Plain](b).
			BindValue("Addr", "somewhere").
			WithImplicitDependency(digraph.TypeOf[mock.Database]())
	})
	resolved := c.Resolve(digraph.TypeOf[*mock.Plain]())
	s.NoError(resolved.CheckOk())
	s.Contains(resolved.ConstructionLog(), "implicit")

	db, err := digraph.ResolveAs[mock.Database](c)
	s.NoError(err)
	s.NotNil(db, "the implicit dependency is resolved and cached")
}

func (s *FeaturesTestSuite) TestClone() {
	parent := digraph.New(func(b *digraph.ConfigurationBuilder) {
		digraph.For[mock.Database](b).UseType(digraph.TypeOf[*mock.MemoryDB]())
	})
	child := parent.Clone(func(b *digraph.ConfigurationBuilder) {
		digraph.For[mock.Database](b).UseType(digraph.TypeOf[*mock.DiskDB]())
	})

	fromParent, err := digraph.ResolveAs[mock.Database](parent)
	s.NoError(err)
	s.IsType(&mock.MemoryDB{}, fromParent)

	fromChild, err := digraph.ResolveAs[mock.Database](child)
	s.NoError(err)
	s.IsType(&mock.DiskDB{}, fromChild)
}

func (s *FeaturesTestSuite) TestConfigurationConflict() {
	c := digraph.New(func(b *digraph.ConfigurationBuilder) {
		digraph.For[mock.Database](b).
			UseInstance(&mock.MemoryDB{}).
			UseFactory(func(*digraph.Container) (any, error) { return &mock.DiskDB{}, nil })
	})
	_, err := digraph.ResolveAs[mock.Database](c)
	s.Error(err)
	s.Contains(err.Error(), "mutually exclusive")
}

func (s *FeaturesTestSuite) TestAutosearchUnionsExplicitAndScanned() {
	s.Run("ExplicitListOverridesScan", func() {
		c := digraph.New(func(b *digraph.ConfigurationBuilder) {
			b.Register(&mock.DiskDB{})
			digraph.For[mock.Database](b).UseType(digraph.TypeOf[*mock.MemoryDB]())
		})
		all, err := digraph.ResolveAllOf[mock.Database](c)
		s.NoError(err)
		s.Len(all, 1)
		s.IsType(&mock.MemoryDB{}, all[0])
	})

	s.Run("AutosearchAddsScanned", func() {
		c := digraph.New(func(b *digraph.ConfigurationBuilder) {
			b.Register(&mock.DiskDB{})
			digraph.For[mock.Database](b).
				UseType(digraph.TypeOf[*mock.MemoryDB]()).
				UseAutosearch()
		})
		all, err := digraph.ResolveAllOf[mock.Database](c)
		s.NoError(err)
		s.Len(all, 2)
		s.IsType(&mock.MemoryDB{}, all[0])
		s.IsType(&mock.DiskDB{}, all[1])
	})
}

func (s *FeaturesTestSuite) TestCreateEnumerable() {
	c := digraph.New(func(b *digraph.ConfigurationBuilder) {
		b.Register(&mock.MemoryDB{}, &mock.DiskDB{})
	})
	resolved, err := digraph.ResolveAllOf[mock.Database](c)
	s.NoError(err)
	created, err := digraph.CreateAllOf[mock.Database](c)
	s.NoError(err)
	s.Len(created, 2)
	s.NotSame(resolved[0], created[0], "created instances bypass the singleton cache")
	s.NotSame(resolved[1], created[1])
}

func (s *FeaturesTestSuite) TestResolutionTracing() {
	logger, hook := logrustest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	c := digraph.New(func(b *digraph.ConfigurationBuilder) {
		b.Register(&mock.MemoryDB{})
		b.WithLogger(logger)
	})
	_, err := digraph.ResolveAs[mock.Database](c)
	s.NoError(err)
	s.NotEmpty(hook.Entries, "resolution emits debug traces when a logger is configured")
	s.Equal("mock.Database", hook.Entries[len(hook.Entries)-1].Data["type"])
}

func TestFeaturesSuite(t *testing.T) {
	suite.Run(t, new(FeaturesTestSuite))
}
