package builder

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zsy619/mapcore/config"
)

type User struct {
	ID   int
	Name string
}

type Order struct {
	ID     int
	UserID int
}

func testCatalog() TypeCatalog {
	return TypeCatalog{
		"User":  reflect.TypeFor[User](),
		"Order": reflect.TypeFor[Order](),
		"int":   reflect.TypeFor[int](),
	}
}

const rootDoc = `<?xml version="1.0" encoding="UTF-8"?>
<configuration>
  <settings>
    <setting name="cacheEnabled" value="true"/>
    <setting name="mapUnderscoreToCamelCase" value="true"/>
  </settings>
  <typeAliases>
    <typeAlias alias="User" type="User"/>
    <typeAlias alias="Order" type="Order"/>
  </typeAliases>
  <mappers>
    <mapper resource="UserMapper.xml"/>
  </mappers>
</configuration>`

const userMapperDoc = `<?xml version="1.0" encoding="UTF-8"?>
<mapper namespace="user">
  <cache eviction="LRU" size="512"/>
  <resultMap id="baseResult" type="User">
    <id property="ID" column="id"/>
    <result property="Name" column="name"/>
  </resultMap>
  <resultMap id="extendedResult" type="User" extends="baseResult">
    <result property="Name" column="full_name"/>
  </resultMap>
  <select id="findByID" parameterType="int" resultMap="baseResult" useCache="true">
    select id, name from users where id = #{id}
  </select>
  <insert id="create" parameterType="User">
    insert into users (name) values (#{Name})
  </insert>
</mapper>`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestBuildRootAndMapper(t *testing.T) {
	dir := t.TempDir()
	rootPath := writeFile(t, dir, "mapcore-config.xml", rootDoc)
	writeFile(t, dir, "UserMapper.xml", userMapperDoc)

	cfg := config.New()
	catalog := testCatalog()

	result, err := BuildRoot(cfg, rootPath, catalog)
	require.NoError(t, err)
	require.Len(t, result.MapperPaths, 1)

	assert.True(t, cfg.Settings.CacheEnabled)
	assert.True(t, cfg.Settings.MapUnderscoreToCamelCase)

	for _, p := range result.MapperPaths {
		require.NoError(t, ParseMapperFile(cfg, p, catalog, result.Properties, ""))
	}
	require.NoError(t, cfg.Seal())

	base, ok := cfg.ResultMap("user.baseResult")
	require.True(t, ok)
	assert.Len(t, base.Mappings, 2)

	extended, ok := cfg.ResultMap("user.extendedResult")
	require.True(t, ok)
	assert.Len(t, extended.Mappings, 2, "Name override replaces, ID is inherited")

	stmt, ok := cfg.Statement("user.findByID")
	require.True(t, ok)
	assert.True(t, stmt.UseCache)
	assert.NotNil(t, stmt.Cache, "cache declared in the same mapper must already be attached")

	_, ok = cfg.Cache("user")
	assert.True(t, ok)
}

func TestBuildRootRejectsPropertiesWithBothResourceAndURL(t *testing.T) {
	dir := t.TempDir()
	bad := `<configuration><properties resource="a.properties" url="http://example.invalid/b.properties"/></configuration>`
	path := writeFile(t, dir, "bad.xml", bad)

	cfg := config.New()
	_, err := BuildRoot(cfg, path, testCatalog())
	assert.Error(t, err)
}

func TestBuildRootResolvesEnvironmentAndDatabaseID(t *testing.T) {
	dir := t.TempDir()
	doc := `<configuration>
  <environments default="dev">
    <environment id="dev">
      <dataSource type="POOLED">
        <property name="driver" value="sqlite3"/>
        <property name="url" value="test.db"/>
        <property name="poolMaximumActiveConnections" value="7"/>
      </dataSource>
    </environment>
  </environments>
  <databaseIdProvider type="DB_VENDOR">
    <property name="sqlite3" value="sqlite"/>
    <property name="_default" value="other"/>
  </databaseIdProvider>
</configuration>`
	path := writeFile(t, dir, "root.xml", doc)

	cfg := config.New()
	result, err := BuildRoot(cfg, path, testCatalog())
	require.NoError(t, err)
	require.NotNil(t, result.Environment)
	assert.Equal(t, "sqlite3", result.Environment.DriverName)
	assert.Equal(t, "test.db", result.Environment.DataSource)
	assert.Equal(t, 7, result.Environment.Pool.MaxActive)
	assert.Equal(t, "sqlite", result.DatabaseID)
}

func TestSQLFragmentDatabaseIDFiltering(t *testing.T) {
	cfg := config.New()
	catalog := testCatalog()

	doc := `<mapper namespace="frag">
  <sql id="cols">id, name</sql>
  <sql id="cols" databaseId="mysql">id, name, extra</sql>
  <select id="list" resultType="User" databaseId="mysql">select <include refid="cols"/> from users</select>
</mapper>`
	require.NoError(t, parseMapperReader(cfg, strings.NewReader(doc), catalog, nil, "mysql"))
	require.NoError(t, cfg.Seal())

	stmt, ok := cfg.Statement("frag.list")
	require.True(t, ok)
	bound, _ := stmt.SqlSource.BoundSql(nil)
	assert.Equal(t, "select id, name, extra from users", bound)
}

func TestStatementTwoPassPrefersDatabaseSpecific(t *testing.T) {
	cfg := config.New()
	catalog := testCatalog()

	doc := `<mapper namespace="multi">
  <select id="find" resultType="User">select * from users</select>
  <select id="find" resultType="User" databaseId="mysql">select * from users /* mysql */</select>
</mapper>`
	require.NoError(t, parseMapperReader(cfg, strings.NewReader(doc), catalog, nil, "mysql"))
	require.NoError(t, cfg.Seal())

	stmt, ok := cfg.Statement("multi.find")
	require.True(t, ok)
	bound, _ := stmt.SqlSource.BoundSql(nil)
	assert.Equal(t, "select * from users /* mysql */", bound)
}

func TestBuildRootUnknownSettingFails(t *testing.T) {
	dir := t.TempDir()
	bad := `<configuration><settings><setting name="bogus" value="1"/></settings></configuration>`
	path := writeFile(t, dir, "bad.xml", bad)

	cfg := config.New()
	_, err := BuildRoot(cfg, path, testCatalog())
	assert.Error(t, err)
}

func TestResolveIncludesAndPlaceholders(t *testing.T) {
	fragments := map[string]string{"cols": "id, name"}
	got := resolveIncludes(`select <include refid="cols"/> from users`, fragments)
	assert.Equal(t, "select id, name from users", got)

	resolved := ResolvePlaceholders("jdbc:${scheme}://${host}", map[string]string{"scheme": "mysql", "host": "localhost"})
	assert.Equal(t, "jdbc:mysql://localhost", resolved)
}

func TestCacheRefForwardReference(t *testing.T) {
	cfg := config.New()
	catalog := testCatalog()
	dir := t.TempDir()

	// referencing mapper parsed first: its statements must be enqueued, not registered,
	// until the referenced namespace's cache shows up.
	referencing := `<mapper namespace="orders">
  <cache-ref namespace="user"/>
  <select id="list" resultType="Order" useCache="true">select * from orders</select>
</mapper>`
	referenced := `<mapper namespace="user">
  <cache eviction="LRU" size="10"/>
</mapper>`

	p1 := writeFile(t, dir, "orders.xml", referencing)
	p2 := writeFile(t, dir, "user.xml", referenced)

	require.NoError(t, ParseMapperFile(cfg, p1, catalog, nil, ""))
	_, registered := cfg.Statement("orders.list")
	assert.False(t, registered, "statement must stay pending until the cache-ref resolves")

	require.NoError(t, ParseMapperFile(cfg, p2, catalog, nil, ""))
	require.NoError(t, cfg.Seal())

	stmt, ok := cfg.Statement("orders.list")
	require.True(t, ok)
	assert.NotNil(t, stmt.Cache)
}
