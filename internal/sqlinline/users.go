package sqlinline

const QSelectEntitlement = `--sql 3c1f7b0e-92a4-4d8e-b1c6-5e07f4a2d913
select
    id,
    coalesce(email, '') as email,
    coalesce(subscription_tier, 'free') as subscription_tier,
    upscale_used,
    upscale_quota,
    expand_used,
    expand_quota,
    created_at
from users
where id = $1::text
limit 1;
`

const QUpsertProfile = `--sql 9e4b2d61-0a7f-4c35-8f12-6d3e9b7c0a48
insert into users (id, email, subscription_tier, upscale_quota, expand_quota, upscale_used, expand_used, created_at, updated_at)
values ($1::text, $2::text, 'free', 0, 0, 0, 0, now(), now())
on conflict (id) do update set
    email = coalesce(nullif(excluded.email, ''), users.email),
    updated_at = now()
returning
    id,
    coalesce(email, '') as email,
    coalesce(subscription_tier, 'free') as subscription_tier,
    upscale_used,
    upscale_quota,
    expand_used,
    expand_quota,
    created_at;
`

const QIncrementUsage = `--sql 5b8a0c37-e6d1-4f92-a7b4-1c2e3d4f5a60
update users
set
    upscale_used = upscale_used + case when $2::text = 'upscale' then 1 else 0 end,
    expand_used = expand_used + case when $2::text = 'expand' then 1 else 0 end,
    updated_at = now()
where id = $1::text;
`

const QUpdateUserPlan = `--sql 7d2e9f14-3b6a-4c80-9e5d-0f1a2b3c4d5e
update users
set
    subscription_tier = $2::text,
    upscale_quota = coalesce($3::int, upscale_quota),
    expand_quota = coalesce($4::int, expand_quota),
    upscale_used = case when $5::bool then 0 else upscale_used end,
    expand_used = case when $5::bool then 0 else expand_used end,
    updated_at = now()
where id = $1::text or lower(email) = lower($1::text)
returning
    id,
    coalesce(email, '') as email,
    coalesce(subscription_tier, 'free') as subscription_tier,
    upscale_used,
    upscale_quota,
    expand_used,
    expand_quota,
    created_at;
`
