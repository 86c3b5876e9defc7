package digraph_test

import (
	"testing"

	"github.com/centraunit/digraph"
	"github.com/centraunit/digraph/mock"
	"github.com/stretchr/testify/suite"
)

type ContainerTestSuite struct {
	suite.Suite
}

func (s *ContainerTestSuite) TestSimpleResolve() {
	c := digraph.New(func(b *digraph.ConfigurationBuilder) {
		b.Register(&mock.MemoryDB{})
	})
	db, err := digraph.ResolveAs[mock.Database](c)
	s.NoError(err)
	s.IsType(&mock.MemoryDB{}, db)
}

func (s *ContainerTestSuite) TestMemoization() {
	c := digraph.New(func(b *digraph.ConfigurationBuilder) {
		b.Register(&mock.MemoryDB{})
	})
	first, err := digraph.ResolveAs[mock.Database](c)
	s.NoError(err)
	second, err := digraph.ResolveAs[mock.Database](c)
	s.NoError(err)
	s.Same(first, second)
}

func (s *ContainerTestSuite) TestEnumerable() {
	c := digraph.New(func(b *digraph.ConfigurationBuilder) {
		b.Register(&mock.MemoryDB{}, &mock.DiskDB{})
	})

	s.Run("AllInRegistrationOrder", func() {
		all, err := digraph.ResolveAllOf[mock.Database](c)
		s.NoError(err)
		s.Len(all, 2)
		s.IsType(&mock.MemoryDB{}, all[0])
		s.IsType(&mock.DiskDB{}, all[1])
	})

	s.Run("SingleIsAmbiguous", func() {
		_, err := digraph.ResolveAs[mock.Database](c)
		s.Error(err)
		s.Contains(err.Error(), "many implementations for [mock.Database]")
	})
}

func (s *ContainerTestSuite) TestNoImplementations() {
	c := digraph.New()
	_, err := digraph.ResolveAs[mock.Database](c)
	s.Error(err)
	s.Contains(err.Error(), "no implementations for mock.Database")
}

func (s *ContainerTestSuite) TestContractScoping() {
	c := digraph.New(func(b *digraph.ConfigurationBuilder) {
		digraph.For[mock.Database](b).InContracts("c1").UseType(digraph.TypeOf[*mock.MemoryDB]())
		digraph.For[mock.Database](b).InContracts("c2").UseType(digraph.TypeOf[*mock.DiskDB]())
	})

	s.Run("FirstContract", func() {
		db, err := digraph.ResolveAs[mock.Database](c, "c1")
		s.NoError(err)
		s.IsType(&mock.MemoryDB{}, db)
	})

	s.Run("SecondContract", func() {
		db, err := digraph.ResolveAs[mock.Database](c, "c2")
		s.NoError(err)
		s.IsType(&mock.DiskDB{}, db)
	})

	s.Run("UnknownContract", func() {
		_, err := digraph.ResolveAs[mock.Database](c, "c3")
		s.Error(err)
		s.Contains(err.Error(), "no implementations for mock.Database")
	})
}

func (s *ContainerTestSuite) TestDuplicateContracts() {
	c := digraph.New(func(b *digraph.ConfigurationBuilder) {
		b.Register(&mock.MemoryDB{})
	})
	_, err := digraph.ResolveAs[mock.Database](c, "c1", "c1")
	s.Error(err)
	s.Contains(err.Error(), "invalid contracts [c1,c1] - duplicates found")
}

func (s *ContainerTestSuite) TestContractCaseInsensitive() {
	c := digraph.New(func(b *digraph.ConfigurationBuilder) {
		digraph.For[mock.Database](b).InContracts("Primary").UseType(digraph.TypeOf[*mock.MemoryDB]())
	})
	first, err := digraph.ResolveAs[mock.Database](c, "primary")
	s.NoError(err)
	second, err := digraph.ResolveAs[mock.Database](c, "PRIMARY")
	s.NoError(err)
	s.Same(first, second)
}

func (s *ContainerTestSuite) TestAssignedInstance() {
	db := &mock.MemoryDB{}
	c := digraph.New(func(b *digraph.ConfigurationBuilder) {
		digraph.For[mock.Database](b).UseInstance(db)
	})
	resolved, err := digraph.ResolveAs[mock.Database](c)
	s.NoError(err)
	s.Same(db, resolved)
}

func (s *ContainerTestSuite) TestFactory() {
	ctx := digraph.NewContainerContext(nil).WithValue("flavor", "disk")
	c := digraph.New(func(b *digraph.ConfigurationBuilder) {
		b.WithContext(ctx)
		digraph.For[mock.Database](b).UseFactory(func(c *digraph.Container) (any, error) {
			if c.Context().Value("flavor") == "disk" {
				return &mock.DiskDB{}, nil
			}
			return &mock.MemoryDB{}, nil
		})
	})
	db, err := digraph.ResolveAs[mock.Database](c)
	s.NoError(err)
	s.IsType(&mock.DiskDB{}, db)
}

func (s *ContainerTestSuite) TestTransitiveResolution() {
	c := digraph.New(func(b *digraph.ConfigurationBuilder) {
		b.Register(&mock.MemoryDB{}, &mock.LocalCache{})
	})
	app, err := digraph.ResolveAs[*mock.App](c)
	s.NoError(err)
	s.Equal("local:memory", app.Cache.Get("k"))
}

func (s *ContainerTestSuite) TestContainerSelfInjection() {
	c := digraph.New()
	got, err := digraph.ResolveAs[*mock.Introspective](c)
	s.NoError(err)
	s.Same(c, got.C)
}

func (s *ContainerTestSuite) TestGetImplementationsOf() {
	c := digraph.New(func(b *digraph.ConfigurationBuilder) {
		b.Register(&mock.MemoryDB{}, &mock.DiskDB{}, &mock.LocalCache{})
	})
	impls := c.GetImplementationsOf(digraph.TypeOf[mock.Database]())
	s.Len(impls, 2)
	s.Equal(digraph.TypeOf[*mock.MemoryDB](), impls[0])
	s.Equal(digraph.TypeOf[*mock.DiskDB](), impls[1])
}

func TestContainerSuite(t *testing.T) {
	suite.Run(t, new(ContainerTestSuite))
}
